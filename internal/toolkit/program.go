// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

package toolkit

import "strings"

// Field is a program parameter value: a scalar Data or a data structure DS.
type Field interface {
	writeXML(b *strings.Builder)
}

// Data is a scalar parameter or data-structure member. Type uses XMLSERVICE
// notation: "10A" for a 10-byte character field, "10i0" for a 4-byte integer.
type Data struct {
	Var   string
	Type  string
	Value string
	// Hex passes the value as hexadecimal text, for binary handles.
	Hex bool
	// SetLen names a DS len label whose value this field receives.
	SetLen string
}

func (d Data) writeXML(b *strings.Builder) {
	b.WriteString("<data var='")
	b.WriteString(attr(d.Var))
	b.WriteString("' type='")
	b.WriteString(attr(d.Type))
	b.WriteString("'")
	if d.Hex {
		b.WriteString(" hex='on'")
	}
	if d.SetLen != "" {
		b.WriteString(" setlen='")
		b.WriteString(attr(d.SetLen))
		b.WriteString("'")
	}
	b.WriteString(">")
	b.WriteString(text(d.Value))
	b.WriteString("</data>")
}

// DS is a data structure parameter.
type DS struct {
	Var    string
	Len    string
	Fields []Data
}

func (d DS) writeXML(b *strings.Builder) {
	b.WriteString("<ds var='")
	b.WriteString(attr(d.Var))
	b.WriteString("'")
	if d.Len != "" {
		b.WriteString(" len='")
		b.WriteString(attr(d.Len))
		b.WriteString("'")
	}
	b.WriteString(">")
	for _, f := range d.Fields {
		f.writeXML(b)
	}
	b.WriteString("</ds>")
}

// Program is a <pgm> call. Every parameter is passed with io='both'.
type Program struct {
	Name  string
	Lib   string
	Var   string
	Parms []Field
}

func (p Program) writeXML(b *strings.Builder) {
	b.WriteString("<pgm name='")
	b.WriteString(attr(p.Name))
	b.WriteString("'")
	if p.Lib != "" {
		b.WriteString(" lib='")
		b.WriteString(attr(p.Lib))
		b.WriteString("'")
	}
	b.WriteString(" var='")
	b.WriteString(attr(p.Var))
	b.WriteString("' error='on'>")
	for _, f := range p.Parms {
		b.WriteString("<parm io='both'>")
		f.writeXML(b)
		b.WriteString("</parm>")
	}
	b.WriteString("</pgm>")
}

// ErrorCode returns the ERRC0100 error-code structure most system APIs take
// as their last parameter.
func ErrorCode() DS {
	return DS{
		Var: "ERRC0100_t",
		Len: "errlen",
		Fields: []Data{
			{Var: "errRet", Type: "10i0", Value: "0"},
			{Var: "errAvl", Type: "10i0", Value: "0"},
			{Var: "errExp", Type: "7A", SetLen: "errlen"},
			{Var: "errRsv", Type: "1A"},
		},
	}
}

// Pad10 left-justifies s in a 10-character field, truncating longer values.
func Pad10(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s + strings.Repeat(" ", 10-len(s))
}
