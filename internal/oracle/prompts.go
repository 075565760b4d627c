package oracle

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a careful refactoring assistant. You improve one file at a time:
clearer names, simpler control flow, dead code removed, comments kept accurate.
You never change observable behavior, public interfaces, or serialized formats.
You respond with the complete improved file and nothing else: no explanation,
no markdown fences, no commentary. If the file needs no improvement, return it
byte-for-byte unchanged.`

func buildPrompt(req ImproveRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "File: %s (type: %s)\n", req.Path, req.FileType)
	if req.Pass > 1 {
		fmt.Fprintf(&b, "This is rewrite pass %d on this file. Earlier passes already applied; push further only where genuine improvement remains.\n", req.Pass)
	}
	if req.Violations != "" {
		b.WriteString("The following violations were detected and must be resolved:\n")
		b.WriteString(req.Violations)
	}
	b.WriteString("\nReturn the complete improved file content.\n\n")
	b.WriteString(req.Content)

	return b.String()
}
