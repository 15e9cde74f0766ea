package llm

import (
	"bufio"
	"io"
	"strings"
)

// maxSSELine 限制单行 SSE 的长度，默认 64KB 对长回复不够用。
const maxSSELine = 1 << 20

// sseReader 逐条读取 SSE 的 data 负载，忽略注释、空行与 event 行。
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxSSELine)
	return &sseReader{scanner: s}
}

// Next 返回下一条 data 负载；流结束时返回 io.EOF。
func (r *sseReader) Next() (string, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		return data, nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
