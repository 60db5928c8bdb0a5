package conversation

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexr72/wpcv/internal/core"
)

type fileLog struct {
	dir string
}

func (f *fileLog) path(id core.ConversationID) string {
	return filepath.Join(f.dir, string(id)+".jsonl")
}

func (f *fileLog) create(id core.ConversationID) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create conversations directory: %w", err)
	}

	file, err := os.OpenFile(f.path(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create conversation file: %w", err)
	}
	return file.Close()
}

func (f *fileLog) exists(id core.ConversationID) bool {
	if !validFileID(id) {
		return false
	}
	_, err := os.Stat(f.path(id))
	return err == nil
}

func (f *fileLog) append(id core.ConversationID, messages ...core.Message) error {
	file, err := os.OpenFile(f.path(id), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	return errors.Join(encodeAll(file, messages), file.Close())
}

func encodeAll(w io.Writer, messages []core.Message) error {
	encoder := json.NewEncoder(w)
	for _, msg := range messages {
		if err := encoder.Encode(msg); err != nil {
			return err
		}
	}
	return nil
}

func (f *fileLog) load(id core.ConversationID) ([]core.Message, error) {
	file, err := os.Open(f.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var messages []core.Message
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg core.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}

		messages = append(messages, msg)
	}

	return messages, scanner.Err()
}

func (f *fileLog) remove(id core.ConversationID) error {
	if !validFileID(id) {
		return nil
	}
	if err := os.Remove(f.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (f *fileLog) list() ([]Info, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	var result []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}

		stat, err := entry.Info()
		if err != nil {
			continue
		}

		id := core.ConversationID(strings.TrimSuffix(entry.Name(), ".jsonl"))
		result = append(result, Info{
			ID:           id,
			MessageCount: countLines(f.path(id)),
			CreatedAt:    id.CreatedAt(),
			ModifiedAt:   stat.ModTime(),
		})
	}

	return result, nil
}

// validFileID rejects ids that would escape the conversations directory.
func validFileID(id core.ConversationID) bool {
	s := string(id)
	return s != "" && !strings.ContainsAny(s, `/\`) && s != "." && s != ".."
}

func countLines(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	count := 0
	buf := make([]byte, 32*1024)
	for {
		n, err := f.Read(buf)
		for i := range n {
			if buf[i] == '\n' {
				count++
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return count
		}
	}
	return count
}
