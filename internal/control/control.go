// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package control reads selection commands from a line based text stream.
//
// Supported commands:
//
//	select <row>   pin the person at the visible row index (0-based)
//	deselect       clear the selection
//	refresh        render the current state
package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/wneessen/distance-provider/internal/logger"
)

// Kind identifies a control command.
type Kind int

const (
	KindSelect Kind = iota
	KindDeselect
	KindRefresh
)

var (
	// ErrUnknownCommand is returned for lines that do not hold a known command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidArgument is returned when a command argument cannot be parsed.
	ErrInvalidArgument = errors.New("invalid command argument")
)

// Command is a parsed control line.
type Command struct {
	Kind Kind
	Row  int
}

// Handler executes control commands.
type Handler interface {
	Select(row int) error
	Deselect()
	Refresh()
}

// Parse parses a single control line. Commands are case-insensitive.
func Parse(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}

	switch fields[0] {
	case "select":
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("%w: select requires a row index", ErrInvalidArgument)
		}
		row, err := strconv.Atoi(fields[1])
		if err != nil {
			return Command{}, fmt.Errorf("%w: %q is not a row index", ErrInvalidArgument, fields[1])
		}
		return Command{Kind: KindSelect, Row: row}, nil
	case "deselect":
		return Command{Kind: KindDeselect}, nil
	case "refresh":
		return Command{Kind: KindRefresh}, nil
	default:
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
	}
}

// Dispatch runs cmd on handler.
func Dispatch(cmd Command, handler Handler) error {
	switch cmd.Kind {
	case KindSelect:
		return handler.Select(cmd.Row)
	case KindDeselect:
		handler.Deselect()
	case KindRefresh:
		handler.Refresh()
	default:
		return ErrUnknownCommand
	}
	return nil
}

// Read parses every line of r and dispatches it to handler until r is exhausted or ctx is
// canceled. Invalid lines and failed commands are logged and skipped.
func Read(ctx context.Context, r io.Reader, handler Handler, log *logger.Logger) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, err := Parse(line)
		if err != nil {
			log.Warn("ignoring control line", slog.String("line", line), logger.Err(err))
			continue
		}
		if err = Dispatch(cmd, handler); err != nil {
			log.Warn("control command failed", slog.String("line", line), logger.Err(err))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to read control commands: %w", err)
	}
	return nil
}

// ListenFIFO creates the named pipe at path if it does not exist and reads commands from it until
// ctx is canceled. The pipe is opened read-write so it stays open while writers come and go.
func ListenFIFO(ctx context.Context, path string, handler Handler, log *logger.Logger) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err = syscall.Mkfifo(path, 0o600); err != nil {
			return fmt.Errorf("failed to create control fifo: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to stat control fifo: %w", err)
	case info.Mode()&os.ModeNamedPipe == 0:
		return fmt.Errorf("control fifo %s is not a named pipe", path)
	}

	fifo, err := os.OpenFile(path, os.O_RDWR, os.ModeNamedPipe)
	if err != nil {
		return fmt.Errorf("failed to open control fifo: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		if err := fifo.Close(); err != nil {
			log.Error("failed to close control fifo", logger.Err(err))
		}
	})
	defer func() {
		if stop() {
			_ = fifo.Close()
		}
	}()

	log.Debug("listening for control commands", slog.String("fifo", path))
	return Read(ctx, fifo, handler, log)
}
