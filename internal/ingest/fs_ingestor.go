package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
	"github.com/joseph-ayodele/legalaid-petitions/internal/entity"
	"github.com/joseph-ayodele/legalaid-petitions/internal/normalize"
	"github.com/joseph-ayodele/legalaid-petitions/internal/protocol"
	"github.com/joseph-ayodele/legalaid-petitions/internal/storage"
)

// FSIngestor reads case directories from the local filesystem.
type FSIngestor struct {
	cases   CaseStore
	blobs   storage.BlobStore
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewFSIngestor(cases CaseStore, blobs storage.BlobStore, timeout time.Duration, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{cases: cases, blobs: blobs, timeout: timeout, logger: logger, now: time.Now}
}

// IngestCase uploads the documents in dir and creates the case named by the directory.
// A case that already exists is left untouched. A directory not named by a protocol gets
// a new one, and is renamed to it so later scans recognise the case.
func (i *FSIngestor) IngestCase(ctx context.Context, dir string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: dir}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return out, err
	}
	out.SourcePath = abs

	payload, err := os.ReadFile(filepath.Join(abs, FormFile))
	if err != nil {
		return out, fmt.Errorf("read %s: %w", FormFile, err)
	}
	action, err := normalize.ActionOf(payload)
	if err != nil {
		return out, common.NewAppError("INVALID_FORM", FormFile+" is not a JSON object", common.ErrInvalidInput)
	}

	proto := filepath.Base(abs)
	if parsed, err := protocol.Parse(proto); err == nil {
		action = parsed.Action
		if _, err := i.cases.Get(ctx, proto); err == nil {
			out.Protocol = proto
			out.Existing = true
			i.logger.Info("ingest.case.exists", "protocol", proto)
			return out, nil
		} else if !errors.Is(err, common.ErrNotFound) {
			return out, err
		}
	} else {
		if proto, err = i.mint(ctx, action); err != nil {
			return out, err
		}
		renamed := filepath.Join(filepath.Dir(abs), proto)
		if err := os.Rename(abs, renamed); err != nil {
			return out, fmt.Errorf("rename %s: %w", abs, err)
		}
		i.logger.Info("ingest.protocol.minted", "protocol", proto, "source", abs)
		abs = renamed
		out.SourcePath = abs
	}
	out.Protocol = proto

	entries, err := os.ReadDir(abs)
	if err != nil {
		return out, err
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Name() < entries[b].Name() })

	now := time.Now().UTC()
	seen := make(map[string]struct{})
	var docs []entity.DocumentRef
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || IsHidden(name) || !AllowedExt(filepath.Ext(name)) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(abs, name))
		if err != nil {
			return out, err
		}
		sum := sha256.Sum256(data)
		hash := hex.EncodeToString(sum[:])
		if _, dup := seen[hash]; dup {
			out.Duplicates++
			continue
		}
		seen[hash] = struct{}{}

		key := proto + "/" + strings.ReplaceAll(name, " ", "_")
		mediaType := constants.MediaTypeFromPath(name)
		uctx, cancel := common.WithTimeout(ctx, i.timeout)
		err = i.blobs.Upload(uctx, key, data, mediaType)
		cancel()
		if err != nil {
			return out, fmt.Errorf("upload %s: %w", key, err)
		}
		docs = append(docs, entity.DocumentRef{Key: key, Name: name, MediaType: mediaType, UploadedAt: now})
	}

	err = i.cases.Create(ctx, &entity.Case{
		Protocol:    proto,
		Status:      constants.StatusReceived,
		ActionType:  action,
		FormPayload: payload,
		Documents:   docs,
	})
	if err != nil {
		return out, err
	}
	out.Documents = len(docs)
	out.IngestedAt = now
	i.logger.Info("ingest.case.created", "protocol", proto, "documents", len(docs), "duplicates", out.Duplicates)
	return out, nil
}

// mint picks the first free sequence for today's date and the action digit.
func (i *FSIngestor) mint(ctx context.Context, action constants.ActionType) (string, error) {
	today := i.now()
	for seq := 1; seq <= protocol.MaxSeq; seq++ {
		candidate := protocol.Generate(today, action, seq)
		_, err := i.cases.Get(ctx, candidate)
		if errors.Is(err, common.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", common.NewAppError("PROTOCOL_EXHAUSTED", "no free protocol sequence for "+today.Format("2006-01-02"), common.ErrConflict)
}

// IngestDirectory ingests every case directory directly under root.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if path == root {
			return walkErr
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if skipHidden && IsHidden(path) {
			return filepath.SkipDir
		}
		if _, err := os.Stat(filepath.Join(path, FormFile)); err != nil {
			return filepath.SkipDir
		}
		stats.Matched++

		r, err := i.IngestCase(ctx, path)
		if err != nil {
			i.logger.Warn("ingest.case.failed", "path", path, "error", err)
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return filepath.SkipDir
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Existing {
			stats.Existing++
		}
		return filepath.SkipDir
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
