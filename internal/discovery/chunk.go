package discovery

// chunkSizeBytes is the fallback split size for files too large to hand
// to the LLM whole (spec §4.O step 3: "~50 KB... fallback size-based
// split at 50 KB chunks").
const chunkSizeBytes = 50 * 1024

// Chunk is one piece of an oversized file, split on a function/class
// boundary when known symbol start lines are available, falling back to
// a fixed byte-size split otherwise.
type Chunk struct {
	Index     int
	StartLine int
	EndLine   int
	Content   string
}

// ChunkContent splits content into Chunks no larger than chunkSizeBytes.
// When boundaryLines (sorted ascending symbol start lines) is non-empty,
// splits are snapped to the nearest preceding boundary so a chunk never
// cuts a function/class definition in half; otherwise it falls back to a
// byte-count split.
func ChunkContent(content string, boundaryLines []int) []Chunk {
	if len(content) <= chunkSizeBytes {
		return []Chunk{{Index: 0, StartLine: 1, EndLine: lineCountOf(content), Content: content}}
	}

	lines := splitLines(content)
	if len(boundaryLines) == 0 {
		return byteSplit(lines)
	}
	return boundarySplit(lines, boundaryLines)
}

func lineCountOf(s string) int {
	return len(splitLines(s))
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func byteSplit(lines []string) []Chunk {
	var chunks []Chunk
	idx := 0
	startLine := 1
	var buf []string
	size := 0

	flush := func(endLine int) {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, Chunk{Index: idx, StartLine: startLine, EndLine: endLine, Content: joinLines(buf)})
		idx++
		buf = nil
		size = 0
	}

	for i, line := range lines {
		buf = append(buf, line)
		size += len(line) + 1
		if size >= chunkSizeBytes {
			flush(i + 1)
			startLine = i + 2
		}
	}
	flush(len(lines))

	return chunks
}

func boundarySplit(lines []string, boundaryLines []int) []Chunk {
	var chunks []Chunk
	idx := 0
	startLine := 1
	size := 0
	lastBoundary := 0

	for i := range lines {
		lineNo := i + 1
		size += len(lines[i]) + 1

		isBoundary := false
		for _, b := range boundaryLines {
			if b == lineNo {
				isBoundary = true
				break
			}
		}

		if size >= chunkSizeBytes && isBoundary && lineNo > startLine {
			chunks = append(chunks, Chunk{
				Index:     idx,
				StartLine: startLine,
				EndLine:   lineNo - 1,
				Content:   joinLines(lines[startLine-1 : lineNo-1]),
			})
			idx++
			startLine = lineNo
			size = len(lines[i]) + 1
			lastBoundary = lineNo
		}
	}
	_ = lastBoundary

	if startLine <= len(lines) {
		chunks = append(chunks, Chunk{
			Index:     idx,
			StartLine: startLine,
			EndLine:   len(lines),
			Content:   joinLines(lines[startLine-1:]),
		})
	}

	return chunks
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
