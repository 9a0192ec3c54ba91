package connector

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path"
	"sync"

	"github.com/checkmarxDev/chatbot-worker/pkg/message"
)

const innerDir = "cx-chatbot"

// FileSystemConnector keeps one JSON file per session. The filesystem has no
// atomic append, so writes to a session are serialized in process.
type FileSystemConnector struct {
	BaseDir string
	locks   sync.Map
}

type sessionFile struct {
	History []message.Turn `json:"history"`
	// Requests maps each appended request id to its ai content.
	Requests map[string]string `json:"requests,omitempty"`
}

func NewFileSystemConnector(baseDir string) *FileSystemConnector {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &FileSystemConnector{BaseDir: baseDir}
}

func (w *FileSystemConnector) History(_ context.Context, key message.Key) ([]message.Turn, error) {
	mu := w.lock(key)
	mu.Lock()
	defer mu.Unlock()

	f, err := w.read(key)
	if err != nil {
		return nil, err
	}
	return f.History, nil
}

func (w *FileSystemConnector) Append(_ context.Context, key message.Key, requestID string, entries []message.Entry) error {
	mu := w.lock(key)
	mu.Lock()
	defer mu.Unlock()

	f, err := w.read(key)
	if err != nil {
		return err
	}
	if _, ok := f.Requests[requestID]; ok && requestID != "" {
		return nil
	}
	f.History = append(f.History, foldEntries(entries)...)
	if requestID != "" {
		if f.Requests == nil {
			f.Requests = map[string]string{}
		}
		f.Requests[requestID] = answerOf(entries)
	}
	return w.write(key, f)
}

func (w *FileSystemConnector) Recorded(_ context.Context, key message.Key, requestID string) (string, bool, error) {
	mu := w.lock(key)
	mu.Lock()
	defer mu.Unlock()

	f, err := w.read(key)
	if err != nil {
		return "", false, err
	}
	answer, ok := f.Requests[requestID]
	return answer, ok, nil
}

func (w *FileSystemConnector) lock(key message.Key) *sync.Mutex {
	mu, _ := w.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (w *FileSystemConnector) read(key message.Key) (sessionFile, error) {
	var f sessionFile
	bytes, err := os.ReadFile(w.getFilePath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return f, err
	}
	err = json.Unmarshal(bytes, &f)
	return f, err
}

func (w *FileSystemConnector) write(key message.Key, f sessionFile) error {
	filePath := w.getFilePath(key)
	if err := os.MkdirAll(path.Dir(filePath), 0o755); err != nil {
		return err
	}
	bytes, err := json.Marshal(f)
	if err != nil {
		return err
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, bytes, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}

func (w *FileSystemConnector) getFilePath(key message.Key) string {
	return path.Join(w.BaseDir, innerDir, path.Base(key.UserID), path.Base(key.SessionID)+".json")
}
