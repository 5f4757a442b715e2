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

package config

import (
	"github.com/nabbar/golib/errors"

	"github/sabouaram/golib/internal/errkind"
)

const (
	ErrorReadFile errors.CodeError = iota + errkind.MinPkgConfig
	ErrorParseYAML
	ErrorUnknownAlgorithm
	ErrorUnknownBackendKind
	ErrorBuildUpstream
	ErrorBuildRoutes
	ErrorBuildSecurity
	ErrorBuildBackend
	ErrorBuildWasm
	ErrorWatch
	ErrorNoSnapshot
)

func init() {
	errors.RegisterIdFctMessage(ErrorReadFile, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case ErrorReadFile:
		return "configuration file could not be read"
	case ErrorParseYAML:
		return "configuration file is not valid YAML"
	case ErrorUnknownAlgorithm:
		return "upstream group names an unknown load-balancing algorithm"
	case ErrorUnknownBackendKind:
		return "route names an unknown backend kind"
	case ErrorBuildUpstream:
		return "upstream group could not be compiled"
	case ErrorBuildRoutes:
		return "route table could not be compiled"
	case ErrorBuildSecurity:
		return "security policy could not be compiled"
	case ErrorBuildBackend:
		return "route backend could not be compiled"
	case ErrorBuildWasm:
		return "wasm module could not be loaded or instantiated"
	case ErrorWatch:
		return "configuration file watcher could not be started"
	case ErrorNoSnapshot:
		return "no configuration snapshot has been loaded yet"
	}

	return ""
}
