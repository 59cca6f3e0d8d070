// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package toolkit encodes XMLSERVICE requests, delivers them over a transport and
// parses the XML replies into label-addressed envelopes.
//
// XMLSERVICE is the host-side toolkit that runs CL commands, SQL statements and
// program calls on behalf of a remote caller. A request is a sequence of steps,
// each tagged with a var label; the reply echoes the steps with their outcome,
// so callers read results back by label.
package toolkit

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

// Labels used by the encoders below.
const (
	LabelCommand   = "command"
	LabelSetASPGrp = "setaspgrp"
	LabelQuery     = "query"
	LabelExecute   = "execute"
	LabelFetch     = "fetch"
	LabelFree      = "free"
	LabelRetrieve  = "rtv_command"
)

// SystemUtility is the PASE program that runs a CL command in line mode and
// writes its display output as text.
const SystemUtility = "/QOpenSys/usr/bin/system"

// SYSBAS is the system ASP; commands against it need no ASP group switch.
const SYSBAS = "*SYSBAS"

// step is one element of an XMLSERVICE request.
type step interface {
	writeXML(b *strings.Builder)
}

// Payload is a complete XMLSERVICE request. It is immutable once built.
type Payload struct {
	steps  []step
	labels []string
}

// XML renders the request document.
func (p *Payload) XML() string {
	var b strings.Builder
	b.WriteString("<?xml version='1.0'?>\n<xmlservice>")
	for _, s := range p.steps {
		s.writeXML(&b)
	}
	b.WriteString("</xmlservice>")
	return b.String()
}

// Labels returns the var labels of the request steps in order.
func (p *Payload) Labels() []string {
	out := make([]string, len(p.labels))
	copy(out, p.labels)
	return out
}

func (p *Payload) add(label string, s step) {
	p.steps = append(p.steps, s)
	p.labels = append(p.labels, label)
}

// cmdStep is a <cmd> element. exec is "cmd" for plain commands and "rexx"
// for retrieve commands that return variables.
type cmdStep struct {
	label   string
	exec    string
	text    string
	errorOn bool
}

func (c cmdStep) writeXML(b *strings.Builder) {
	b.WriteString("<cmd exec='")
	b.WriteString(c.exec)
	b.WriteString("' var='")
	b.WriteString(attr(c.label))
	b.WriteString("'")
	if c.errorOn {
		b.WriteString(" error='on'")
	}
	b.WriteString(">")
	b.WriteString(text(c.text))
	b.WriteString("</cmd>")
}

// sqlStep is a <sql> block. The free element is written unconditionally as
// the last child, so a payload can never leave a statement handle open on
// the host. A statement with bound values is prepared under LabelQuery and
// executed with one input parm per value.
type sqlStep struct {
	statement string
	fetch     bool
	args      []string
}

func (s sqlStep) writeXML(b *strings.Builder) {
	b.WriteString("<sql>")
	if len(s.args) == 0 {
		b.WriteString("<query var='" + LabelQuery + "' error='on'>")
		b.WriteString(text(s.statement))
		b.WriteString("</query>")
	} else {
		b.WriteString("<prepare var='" + LabelQuery + "' error='on'>")
		b.WriteString(text(s.statement))
		b.WriteString("</prepare>")
		b.WriteString("<execute var='" + LabelExecute + "' error='on'>")
		for _, a := range s.args {
			b.WriteString("<parm io='in'>")
			b.WriteString(text(a))
			b.WriteString("</parm>")
		}
		b.WriteString("</execute>")
	}
	if s.fetch {
		b.WriteString("<fetch var='" + LabelFetch + "' block='all' desc='on'/>")
	}
	b.WriteString("<free var='" + LabelFree + "'/>")
	b.WriteString("</sql>")
}

// EncodeCommand wraps a CL command in a single toolkit step with error capture on.
func EncodeCommand(command string) *Payload {
	p := &Payload{}
	p.add(LabelCommand, cmdStep{label: LabelCommand, exec: "cmd", text: command, errorOn: true})
	return p
}

// shStep is a <sh> element running a PASE shell command on the host.
type shStep struct {
	label string
	text  string
}

func (s shStep) writeXML(b *strings.Builder) {
	b.WriteString("<sh var='")
	b.WriteString(attr(s.label))
	b.WriteString("' error='on'>")
	b.WriteString(text(s.text))
	b.WriteString("</sh>")
}

var reOutputStar = regexp.MustCompile(`(?i)\s*OUTPUT\(\*\)`)

var shellQuote = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")

// EncodeScreenCommand runs a screen command through the line-mode system
// utility on the host, so its display output comes back as text under
// LabelCommand. OUTPUT(*) is dropped: the utility already captures the
// display.
func EncodeScreenCommand(command string) *Payload {
	command = strings.TrimSpace(reOutputStar.ReplaceAllString(command, ""))
	p := &Payload{}
	p.add(LabelCommand, shStep{
		label: LabelCommand,
		text:  SystemUtility + ` "` + shellQuote.Replace(command) + `"`,
	})
	return p
}

// EncodeCommandWithASP runs SETASPGRP before the command when the command
// names an ASPDEV or the caller asks for an ASP group other than *SYSBAS.
// The returned group is the one that was switched to, or SYSBAS.
func EncodeCommandWithASP(command, aspGroup string) (*Payload, string) {
	group := ResolveASPGroup(command, aspGroup)
	if group == SYSBAS {
		return EncodeCommand(command), SYSBAS
	}
	p := &Payload{}
	p.add(LabelSetASPGrp, cmdStep{
		label:   LabelSetASPGrp,
		exec:    "cmd",
		text:    "QSYS/SETASPGRP ASPGRP(" + group + ")",
		errorOn: true,
	})
	p.add(LabelCommand, cmdStep{label: LabelCommand, exec: "cmd", text: command, errorOn: true})
	return p, group
}

// ResolveASPGroup returns the ASP group a command must run under. An explicit
// ASPDEV(name) parameter wins over aspGroup unless its value is a special
// value such as *CURASPGRP.
func ResolveASPGroup(command, aspGroup string) string {
	group := strings.ToUpper(strings.TrimSpace(aspGroup))
	if group == "" {
		group = SYSBAS
	}
	cmd := strings.ToUpper(command)
	if _, rest, ok := strings.Cut(cmd, "ASPDEV("); ok {
		if rest != "" && !strings.HasPrefix(rest, "*") {
			if dev, _, ok := strings.Cut(rest, ")"); ok {
				group = strings.TrimSpace(dev)
			}
		}
	}
	return group
}

// EncodeQuery emits query, fetch (when requested) and free, in that order.
// With args the query is a prepare followed by an execute binding them in
// order to the statement's parameter markers.
func EncodeQuery(statement string, fetch bool, args ...any) *Payload {
	p := &Payload{}
	s := sqlStep{statement: statement, fetch: fetch, args: bindValues(args)}
	p.add(LabelQuery, s)
	if len(s.args) > 0 {
		p.labels = append(p.labels, LabelExecute)
	}
	if fetch {
		p.labels = append(p.labels, LabelFetch)
	}
	p.labels = append(p.labels, LabelFree)
	return p
}

// EncodeCallable runs an SQL statement that returns no result set, such as a
// CALL to a procedure or a DML statement.
func EncodeCallable(statement string, args ...any) *Payload {
	return EncodeQuery(statement, false, args...)
}

func bindValues(args []any) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case nil:
		case []byte:
			out[i] = string(v)
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

// RetrieveVar names one return variable of a retrieve command.
type RetrieveVar struct {
	Name    string
	Numeric bool
}

// EncodeRetrieve builds a retrieve command such as RTVJOBA whose return
// variables are collected by name. Each variable becomes NAME(?) or NAME(?N).
func EncodeRetrieve(command string, vars []RetrieveVar) *Payload {
	var b strings.Builder
	b.WriteString(command)
	b.WriteString(" ")
	for _, v := range vars {
		b.WriteString(v.Name)
		if v.Numeric {
			b.WriteString("(?N) ")
		} else {
			b.WriteString("(?) ")
		}
	}
	p := &Payload{}
	p.add(LabelRetrieve, cmdStep{label: LabelRetrieve, exec: "rexx", text: strings.TrimRight(b.String(), " ")})
	return p
}

// EncodeProgram calls a program with the given parameters.
func EncodeProgram(pgm Program) *Payload {
	p := &Payload{}
	p.add(pgm.Var, pgm)
	return p
}

// attr escapes an attribute value; EscapeText also escapes both quote characters.
func attr(s string) string { return text(s) }

func text(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
