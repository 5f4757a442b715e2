/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package security

import (
	"strconv"
	"strings"
)

// cefSeverity maps this package's four-level Severity onto CEF's 0-10 scale.
var cefSeverity = map[Severity]int{
	SeverityLow:      3,
	SeverityMedium:   5,
	SeverityHigh:     8,
	SeverityCritical: 10,
}

// cefBody renders events as one ArcSight Common Event Format line each,
// newline-separated: "CEF:Version|Vendor|Product|Version|SignatureID|Name|
// Severity|Extension".
func cefBody(events []Event) *strings.Reader {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString(cefLine(ev))
		b.WriteByte('\n')
	}
	return strings.NewReader(b.String())
}

func cefLine(ev Event) string {
	var ext strings.Builder
	ext.WriteString("act=")
	if ev.Blocked {
		ext.WriteString("blocked")
	} else {
		ext.WriteString("allowed")
	}
	if ev.ClientIP != "" {
		ext.WriteString(" src=")
		ext.WriteString(ev.ClientIP)
	}
	if ev.Method != "" {
		ext.WriteString(" requestMethod=")
		ext.WriteString(ev.Method)
	}
	if ev.Path != "" {
		ext.WriteString(" request=")
		ext.WriteString(cefEscapeExtension(ev.Path))
	}
	if ev.Detail != "" {
		ext.WriteString(" msg=")
		ext.WriteString(cefEscapeExtension(ev.Detail))
	}
	ext.WriteString(" rt=")
	ext.WriteString(ev.Time.UTC().Format("Jan 02 2006 15:04:05"))

	return strings.Join([]string{
		"CEF:0",
		"golib",
		"static",
		"1.0",
		string(ev.EventType),
		cefEscapeHeader(string(ev.EventType)),
		strconv.Itoa(cefSeverity[ev.Severity]),
		ext.String(),
	}, "|")
}

// cefEscapeHeader escapes the pipe and backslash characters CEF reserves as
// header field delimiters.
func cefEscapeHeader(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `|`, `\|`)
}

// cefEscapeExtension escapes the equals sign and backslash CEF reserves
// inside extension key=value pairs.
func cefEscapeExtension(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `=`, `\=`)
}

