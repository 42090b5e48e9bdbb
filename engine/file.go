package engine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

const maxStatementLine = 16 << 20

// LoadFile executes the SQL dump at path statement by statement and returns
// how many statements ran. A statement ends with a line whose last
// non-blank character is ';'. Lines starting with "--" are skipped.
func (e *Engine) LoadFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("load file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), maxStatementLine)

	var (
		stmt  strings.Builder
		count int
		line  int
	)
	run := func() error {
		sql := strings.TrimSpace(stmt.String())
		stmt.Reset()
		sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
		if sql == "" {
			return nil
		}
		if _, err := e.NativeExec(ctx, sql); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		count++
		return nil
	}

	for scanner.Scan() {
		line++
		text := scanner.Text()
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		stmt.WriteString(text)
		stmt.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			if err := run(); err != nil {
				return count, err
			}
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("load file: %w", err)
	}
	return count, run()
}
