package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	clientapi "github.com/iudanet/cropscan/internal/client/api"
	"github.com/iudanet/cropscan/internal/client/storage"
)

// maxImageSize совпадает с лимитом сервера по умолчанию
const maxImageSize = 5 << 20

func (c *Cli) runScan(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing image path. Usage: cropscan scan <image>")
	}
	path := args[0]

	session, err := c.requireSession(ctx)
	if err != nil {
		return err
	}

	image, err := loadImage(path)
	if err != nil {
		return err
	}

	c.io.Printf("Analyzing %s (%d bytes)...\n", filepath.Base(path), len(image.Data))

	resp, err := c.apiClient.SubmitScan(ctx, session.Token, image)
	if err != nil {
		return explainAPIError(err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	record := toRecord(resp, absPath)

	if err := c.store.SaveScan(ctx, record); err != nil {
		c.io.Printf("Warning: failed to save scan to local history: %v\n", err)
	}

	return scanTmpl.Execute(c.io, record)
}

func (c *Cli) runShow(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing scan ID. Usage: cropscan show <scan-id>")
	}
	scanID := args[0]

	session, err := c.requireSession(ctx)
	if err != nil {
		return err
	}

	resp, err := c.apiClient.GetScan(ctx, session.Token, scanID)
	if err != nil {
		return explainAPIError(err)
	}

	// Путь к исходному файлу известен только локально
	source := ""
	if cached, err := c.store.GetScan(ctx, scanID); err == nil {
		source = cached.Source
	} else if !errors.Is(err, storage.ErrScanNotFound) {
		return fmt.Errorf("failed to read scan history: %w", err)
	}

	record := toRecord(resp, source)
	if err := c.store.SaveScan(ctx, record); err != nil {
		c.io.Printf("Warning: failed to save scan to local history: %v\n", err)
	}

	return scanTmpl.Execute(c.io, record)
}

func (c *Cli) runHistory(ctx context.Context) error {
	session, err := c.requireSession(ctx)
	if err != nil {
		return err
	}

	scans, err := c.store.ListScans(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("failed to read scan history: %w", err)
	}

	return historyTmpl.Execute(c.io, scans)
}

// loadImage читает файл и определяет его тип
func loadImage(path string) (clientapi.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return clientapi.Image{}, fmt.Errorf("failed to open image: %w", err)
	}
	if info.IsDir() {
		return clientapi.Image{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return clientapi.Image{}, fmt.Errorf("%s is empty", path)
	}
	if info.Size() > maxImageSize {
		return clientapi.Image{}, fmt.Errorf("%s is too large: %d bytes, maximum is %d", path, info.Size(), maxImageSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return clientapi.Image{}, fmt.Errorf("failed to read image: %w", err)
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		// HEIC и прочие форматы без сигнатуры в DetectContentType
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(byExt, "image/") {
			contentType = byExt
		}
	}

	return clientapi.Image{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}
