package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/menuflow/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	CurrentNode string
	Unreachable []string
}

// GenerateMermaid produces a Mermaid flowchart syntax string from a Menu.
// It applies semantic styling:
// - Entry: ((Circle))
// - Input: [/Parallelogram/]
// - Switch: {Rhombus}
// - HTTP request: [[Subroutine]]
// - Message: [Rectangle]
// Case edges are labeled with the case id; the default case is dotted.
func GenerateMermaid(menu *domain.Menu, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	entry := menu.EntryNodeID()
	for _, node := range menu.Nodes {
		safeID := sanitizeMermaidID(node.NodeID())

		opener, closer := "[", "]"
		switch {
		case node.NodeID() == entry:
			opener, closer = "((", "))"
		case node.Kind() == domain.NodeTypeInput:
			opener, closer = "[/", "/]"
		case node.Kind() == domain.NodeTypeSwitch:
			opener, closer = "{", "}"
		case node.Kind() == domain.NodeTypeHTTPRequest:
			opener, closer = "[[", "]]"
		}

		label := node.NodeID()
		if req, ok := node.(*domain.HTTPRequest); ok {
			method := req.Method
			if method == "" {
				method = "GET"
			}
			label = fmt.Sprintf("%s <br/> %s", node.NodeID(), strings.ToUpper(method))
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escape(label), closer)

		if next := node.Next(); next != "" {
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(next))
		}

		// The branch of an input node only runs when it has no o_connection.
		b, ok := domain.BranchOf(node)
		if !ok || (node.Kind() == domain.NodeTypeInput && node.Next() != "") {
			continue
		}
		for _, c := range b.Cases {
			if c.OConnection == "" {
				continue
			}
			safeTo := sanitizeMermaidID(c.OConnection)
			if c.IsDefault() {
				fmt.Fprintf(&sb, "    %s -. \"default\" .-> %s\n", safeID, safeTo)
				continue
			}
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, escape(c.ID), safeTo)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef unreachable fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4 4,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		for _, id := range overlay.Unreachable {
			fmt.Fprintf(&sb, "    class %s unreachable;\n", sanitizeMermaidID(id))
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
