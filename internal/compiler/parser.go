package compiler

import (
	"errors"
	"fmt"

	"github.com/aretw0/menuflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Parser is responsible for converting a raw flow definition into a Menu.
// YAML and JSON are both accepted (JSON is read as YAML).
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

type wireMenu struct {
	ID    string      `yaml:"id"`
	Entry string      `yaml:"entry"`
	Nodes []yaml.Node `yaml:"nodes"`
}

type wireBase struct {
	ID          string `yaml:"id"`
	Type        string `yaml:"type"`
	OConnection string `yaml:"o_connection"`
}

type wireCase struct {
	ID          string    `yaml:"id"`
	Variables   yaml.Node `yaml:"variables"`
	OConnection string    `yaml:"o_connection"`
}

type wireBranch struct {
	Validation string     `yaml:"validation"`
	Cases      []wireCase `yaml:"cases"`
}

type wireMessage struct {
	wireBase `yaml:",inline"`
	Text     string `yaml:"text"`
}

type wireInput struct {
	wireBase   `yaml:",inline"`
	wireBranch `yaml:",inline"`
	Text       string `yaml:"text"`
	Variable   string `yaml:"variable"`
}

type wireSwitch struct {
	wireBase   `yaml:",inline"`
	wireBranch `yaml:",inline"`
}

type wireHTTPRequest struct {
	wireBase    `yaml:",inline"`
	wireBranch  `yaml:",inline"`
	Method      string            `yaml:"method"`
	URL         string            `yaml:"url"`
	Headers     map[string]string `yaml:"headers"`
	QueryParams map[string]string `yaml:"query_params"`
	Data        any               `yaml:"data"`
	BasicAuth   *domain.BasicAuth `yaml:"basic_auth"`
	Variables   yaml.Node         `yaml:"variables"`
	Cookies     yaml.Node         `yaml:"cookies"`
}

// Parse decodes a flow definition. It checks node ids and types but leaves
// reference resolution to Menu.ResolveReferences.
func (p *Parser) Parse(data []byte) (*domain.Menu, error) {
	var wm wireMenu
	if err := yaml.Unmarshal(data, &wm); err != nil {
		return nil, fmt.Errorf("failed to parse menu: %w", err)
	}
	if len(wm.Nodes) == 0 {
		return nil, errors.New("menu has no nodes")
	}

	nodes := make([]domain.Node, 0, len(wm.Nodes))
	for i := range wm.Nodes {
		n, err := p.parseNode(&wm.Nodes[i])
		if err != nil {
			return nil, fmt.Errorf("node #%d: %w", i, err)
		}
		nodes = append(nodes, n)
	}
	return domain.NewMenu(wm.ID, wm.Entry, nodes)
}

func (p *Parser) parseNode(raw *yaml.Node) (domain.Node, error) {
	var head wireBase
	if err := raw.Decode(&head); err != nil {
		return nil, err
	}
	if head.ID == "" {
		return nil, errors.New("node missing id")
	}

	switch domain.NodeType(head.Type) {
	case domain.NodeTypeMessage:
		var w wireMessage
		if err := raw.Decode(&w); err != nil {
			return nil, fmt.Errorf("node %s: %w", head.ID, err)
		}
		return &domain.Message{Base: base(w.wireBase), Text: w.Text}, nil

	case domain.NodeTypeInput:
		var w wireInput
		if err := raw.Decode(&w); err != nil {
			return nil, fmt.Errorf("node %s: %w", head.ID, err)
		}
		br, err := branch(w.wireBranch)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", head.ID, err)
		}
		return &domain.Input{Base: base(w.wireBase), Branch: br, Text: w.Text, Variable: w.Variable}, nil

	case domain.NodeTypeSwitch:
		var w wireSwitch
		if err := raw.Decode(&w); err != nil {
			return nil, fmt.Errorf("node %s: %w", head.ID, err)
		}
		br, err := branch(w.wireBranch)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", head.ID, err)
		}
		return &domain.Switch{Base: base(w.wireBase), Branch: br}, nil

	case domain.NodeTypeHTTPRequest:
		var w wireHTTPRequest
		if err := raw.Decode(&w); err != nil {
			return nil, fmt.Errorf("node %s: %w", head.ID, err)
		}
		br, err := branch(w.wireBranch)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", head.ID, err)
		}
		vars, err := assignments(&w.Variables)
		if err != nil {
			return nil, fmt.Errorf("node %s: variables: %w", head.ID, err)
		}
		cookies, err := assignments(&w.Cookies)
		if err != nil {
			return nil, fmt.Errorf("node %s: cookies: %w", head.ID, err)
		}
		if w.URL == "" {
			return nil, fmt.Errorf("node %s: http_request missing url", head.ID)
		}
		return &domain.HTTPRequest{
			Base:        base(w.wireBase),
			Branch:      br,
			Method:      w.Method,
			URL:         w.URL,
			Headers:     w.Headers,
			QueryParams: w.QueryParams,
			Data:        w.Data,
			BasicAuth:   w.BasicAuth,
			Variables:   vars,
			Cookies:     cookies,
		}, nil

	case "":
		return nil, fmt.Errorf("node %s: missing type", head.ID)
	default:
		return nil, fmt.Errorf("node %s: unknown type %q", head.ID, head.Type)
	}
}

func base(w wireBase) domain.Base {
	return domain.Base{ID: w.ID, Type: domain.NodeType(w.Type), OConnection: w.OConnection}
}

func branch(w wireBranch) (domain.Branch, error) {
	b := domain.Branch{Validation: w.Validation}
	for i, wc := range w.Cases {
		if wc.ID == "" {
			return b, fmt.Errorf("case #%d missing id", i)
		}
		vars, err := assignments(&wc.Variables)
		if err != nil {
			return b, fmt.Errorf("case %s: variables: %w", wc.ID, err)
		}
		b.Cases = append(b.Cases, domain.Case{ID: wc.ID, Variables: vars, OConnection: wc.OConnection})
	}
	return b, nil
}

// assignments reads a mapping node keeping the declaration order of its keys.
func assignments(n *yaml.Node) (domain.Assignments, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
	case yaml.MappingNode:
		out := make(domain.Assignments, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if v.Kind == yaml.AliasNode {
				v = v.Alias
			}
			if v.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("value of %q must be a scalar", k.Value)
			}
			value := v.Value
			if v.Tag == "!!null" {
				value = ""
			}
			out = append(out, domain.Assignment{Name: k.Value, Value: value})
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a mapping, got %s", kindName(n.Kind))
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.DocumentNode:
		return "a document"
	}
	return "an unknown node"
}
