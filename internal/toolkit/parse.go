// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

package toolkit

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Envelope is the conditional-key mapping for one reply step. Depending on the
// outcome it carries "success" (string), "error" (map[string]any with
// "joblog", "xmlhint", "xmlerrmsg", "errnoxml", "status", "message"),
// "row" (a single map[string]any or a []any of them) and program output
// variables keyed by their var label. A shell step carries its output text
// under its own label.
type Envelope = map[string]any

// Output holds the reply envelopes keyed by step label. A label used by more
// than one step keeps every envelope in order.
type Output struct {
	steps map[string][]Envelope
	order []string
}

// Get returns the envelope for label, or an empty envelope when the reply has
// no such step. When the label repeats, the last envelope wins.
func (o Output) Get(label string) Envelope {
	all := o.steps[label]
	if len(all) == 0 {
		return Envelope{}
	}
	return all[len(all)-1]
}

// All returns every envelope recorded for label.
func (o Output) All(label string) []Envelope {
	return o.steps[label]
}

// Labels returns the labels in reply order.
func (o Output) Labels() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

func (o *Output) put(label string, env Envelope) {
	if o.steps == nil {
		o.steps = make(map[string][]Envelope)
	}
	if _, seen := o.steps[label]; !seen {
		o.order = append(o.order, label)
	}
	o.steps[label] = append(o.steps[label], env)
}

// node is a generic XML element.
type node struct {
	name     string
	attrs    map[string]string
	text     strings.Builder
	children []*node
}

func (n *node) attr(key string) string { return n.attrs[key] }

func (n *node) body() string { return strings.TrimSpace(n.text.String()) }

func parseTree(r io.Reader) (*node, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	root := &node{name: "#document"}
	stack := []*node{root}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				n.attrs[a.Name.Local] = a.Value
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			stack[len(stack)-1].text.Write(t)
		}
	}
	return root, nil
}

// Parse reads an XMLSERVICE reply document into an Output.
func Parse(reply string) (Output, error) {
	var out Output
	if strings.TrimSpace(reply) == "" {
		return out, fmt.Errorf("empty toolkit reply")
	}
	root, err := parseTree(strings.NewReader(reply))
	if err != nil {
		return out, fmt.Errorf("parse toolkit reply: %w", err)
	}
	svc := find(root, "xmlservice")
	if svc == nil {
		return out, fmt.Errorf("toolkit reply has no xmlservice element")
	}
	for _, n := range svc.children {
		switch n.name {
		case "cmd", "pgm":
			out.put(labelOf(n), stepEnvelope(n))
		case "sh":
			env := stepEnvelope(n)
			if _, failed := env["error"]; !failed {
				env[labelOf(n)] = strings.Trim(n.text.String(), "\r\n")
			}
			out.put(labelOf(n), env)
		case "sql":
			for _, c := range n.children {
				out.put(labelOf(c), stepEnvelope(c))
			}
		}
	}
	return out, nil
}

func find(n *node, name string) *node {
	if n.name == name {
		return n
	}
	for _, c := range n.children {
		if f := find(c, name); f != nil {
			return f
		}
	}
	return nil
}

func labelOf(n *node) string {
	if v := n.attr("var"); v != "" {
		return v
	}
	return n.name
}

// stepEnvelope converts one reply step to its conditional-key mapping.
// Keys appear only when the reply carries the matching element.
func stepEnvelope(n *node) Envelope {
	env := Envelope{}
	var errMap map[string]any
	var errText []string
	var joblog string
	hasJobLog := false
	var rows []any

	for _, c := range n.children {
		switch c.name {
		case "success":
			env["success"] = c.body()
		case "error":
			if errMap == nil {
				errMap = map[string]any{}
			}
			if len(c.children) == 0 {
				if t := c.body(); t != "" {
					errText = append(errText, t)
				}
				continue
			}
			for _, e := range c.children {
				errMap[e.name] = e.body()
			}
		case "joblog":
			hasJobLog = true
			joblog = c.body()
		case "row":
			rows = append(rows, rowMap(c))
		case "parm", "ds", "data":
			collectData(c, env)
		}
	}

	if errMap != nil {
		if len(errText) > 0 {
			errMap["message"] = strings.Join(errText, "\n")
		}
		if hasJobLog {
			errMap["joblog"] = joblog
		}
		env["error"] = errMap
	}

	switch len(rows) {
	case 0:
	case 1:
		env["row"] = rows[0]
	default:
		env["row"] = rows
	}
	return env
}

// rowMap turns <row><data desc='COL'>v</data>...</row> into a column map.
func rowMap(n *node) map[string]any {
	row := make(map[string]any, len(n.children))
	for _, d := range n.children {
		if d.name != "data" {
			continue
		}
		col := d.attr("desc")
		if col == "" {
			col = d.attr("var")
		}
		row[col] = d.body()
	}
	return row
}

func collectData(n *node, env Envelope) {
	if n.name == "data" {
		if v := n.attr("var"); v != "" {
			env[v] = n.body()
		}
		return
	}
	for _, c := range n.children {
		collectData(c, env)
	}
}
