/*
Copyright (c) 2025 Odd Kin <oddkin@oddkin.co>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package artifact

import (
	"path/filepath"
	"strings"
)

// primaryBaseSplit is always delivered by the base install and never re-sent
const primaryBaseSplit = "base-master.apk"

// selectSplits partitions extracted split paths into kept and discarded sets
func selectSplits(paths []string, selection Selection) (keep, discard []string) {
	for _, path := range paths {
		if keepSplit(filepath.Base(path), selection) {
			keep = append(keep, path)
		} else {
			discard = append(discard, path)
		}
	}
	return keep, discard
}

func keepSplit(name string, selection Selection) bool {
	for _, module := range selection.Modules {
		if module != "" && strings.HasPrefix(name, module) {
			return true
		}
	}

	for _, language := range selection.Languages {
		if language != "" && strings.HasSuffix(name, "-"+language+".apk") {
			return true
		}
	}

	if selection.IncludeMissing && strings.HasPrefix(name, "base-") && name != primaryBaseSplit {
		return true
	}

	return false
}
