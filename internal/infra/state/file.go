package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File хранит состояние в JSON-файле на диске.
type File struct {
	path string
}

// NewFile создаёт файловое хранилище.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path возвращает путь к файлу состояния.
func (f *File) Path() string {
	return f.path
}

// Read читает файл целиком. Отсутствующий файл не считается ошибкой.
func (f *File) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, nil
}

// Write атомарно заменяет файл: запись во временный файл и переименование.
func (f *File) Write(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Memory держит состояние в памяти процесса. Используется в тестах и для dry-run миграций.
type Memory struct {
	Data []byte
	Err  error
}

// Read возвращает сохранённые байты.
func (m *Memory) Read(context.Context) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Data, nil
}

// Write запоминает байты.
func (m *Memory) Write(_ context.Context, payload []byte) error {
	if m.Err != nil {
		return m.Err
	}
	m.Data = append([]byte(nil), payload...)
	return nil
}
