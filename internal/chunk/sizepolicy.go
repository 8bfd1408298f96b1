package chunk

import "strings"

// window is a candidate chunk before it is wrapped into a full Chunk: a
// content slice and the 1-based inclusive line range it came from.
type window struct {
	content   string
	startLine int
	endLine   int
}

// enforceSizePolicy applies spec invariant I3 to a single candidate window:
// drop it if it's under MinChunkChars, split it into overlapping
// MaxChunkChars-wide windows (step MaxChunkChars-OverlapChars) if it's over,
// otherwise pass it through unchanged. Window line ranges for split pieces
// are inferred by counting newlines in the content prefix, matching the
// original window's starting line.
func enforceSizePolicy(w window) []window {
	if len(w.content) < MinChunkChars {
		return nil
	}
	if len(w.content) <= MaxChunkChars {
		return []window{w}
	}

	step := MaxChunkChars - OverlapChars
	var out []window
	for start := 0; start < len(w.content); start += step {
		end := start + MaxChunkChars
		if end > len(w.content) {
			end = len(w.content)
		}
		slice := w.content[start:end]
		if len(slice) < MinChunkChars {
			// Trailing remainder too small to stand alone; drop it. The
			// previous window's overlap already covers this tail.
			break
		}
		startLine := w.startLine + strings.Count(w.content[:start], "\n")
		endLine := w.startLine + strings.Count(w.content[:end], "\n")
		out = append(out, window{content: slice, startLine: startLine, endLine: endLine})
		if end >= len(w.content) {
			break
		}
	}
	return out
}

// lineWindows splits content into fixed-size, overlapping line windows.
// Used by the generic fallback chunker. startLine is the 1-based line
// number of content's first line.
func lineWindows(content string, startLine, windowLines, overlapLines int) []window {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return nil
	}

	var out []window
	for i := 0; i < len(lines); {
		end := i + windowLines
		if end > len(lines) {
			end = len(lines)
		}
		out = append(out, window{
			content:   strings.Join(lines[i:end], "\n"),
			startLine: startLine + i,
			endLine:   startLine + end - 1,
		})
		if end >= len(lines) {
			break
		}
		i = end - overlapLines
		if i < 0 {
			i = 0
		}
	}
	return out
}
