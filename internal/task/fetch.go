package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"

	"github.com/gpurig/rig/internal/models"
)

// SFTPOpener is satisfied by connections that expose the file-transfer
// subsystem.
type SFTPOpener interface {
	SFTP() (*sftp.Client, error)
}

// FetchLog streams the full remote log for taskID into w, for artifact
// inspection after a task has completed. Returns ErrRemoteNotFound when no
// log exists for the id on this host.
func FetchLog(ctx context.Context, conn SFTPOpener, taskID string, w io.Writer) (int64, error) {
	if err := models.ValidateTaskID(taskID); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	client, err := conn.SFTP()
	if err != nil {
		return 0, fmt.Errorf("open sftp subsystem: %w", err)
	}
	defer client.Close()

	f, err := client.Open(LogPath(taskID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrRemoteNotFound, LogPath(taskID))
		}
		return 0, fmt.Errorf("open remote log: %w", err)
	}
	defer f.Close()

	return io.Copy(w, f)
}
