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

package backend

import (
	"net/http"
	"strings"

	"github.com/nabbar/golib/errors"
)

// dispatchRedirect answers with a templated Location and a 3xx status.
// $request_uri substitutes the full original path+query; $path substitutes
// the path alone.
func dispatchRedirect(b *Backend, w http.ResponseWriter, r *http.Request) errors.Error {
	red := b.Redirect

	status := red.StatusCode
	if status == 0 {
		status = http.StatusFound
	}
	if status < 300 || status > 399 {
		return ErrorInvalidRedirectTemplate.Error(nil)
	}

	location := expandRedirectTemplate(red.URLTemplate, r)
	if red.PreservePath && !strings.Contains(red.URLTemplate, "$path") && !strings.Contains(red.URLTemplate, "$request_uri") {
		location = strings.TrimSuffix(location, "/") + r.URL.Path
	}

	w.Header().Set("Location", location)
	w.WriteHeader(status)
	return nil
}

func expandRedirectTemplate(tmpl string, r *http.Request) string {
	requestURI := r.URL.Path
	if r.URL.RawQuery != "" {
		requestURI += "?" + r.URL.RawQuery
	}

	replacer := strings.NewReplacer(
		"$request_uri", requestURI,
		"$path", r.URL.Path,
	)
	return replacer.Replace(tmpl)
}
