/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "gocutscene/internal/log"
	"gocutscene/internal/scene"
)

const (
	AssetExt       = ".cutscene.json"
	BackupsDirName = "backups"
)

// AssetPath returns where the asset for the named scene lives under dir.
func AssetPath(dir, name string) string {
	return filepath.Join(dir, assetFileName(name))
}

func assetFileName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	return clean + AssetExt
}

// EncodeScene renders sc as an indented, schema-valid JSON document.
func EncodeScene(sc *scene.Scene) ([]byte, error) {
	if sc == nil {
		return nil, errors.New("nil scene")
	}
	compact, err := scene.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal scene %q: %w", sc.Name, err)
	}
	if err := scene.Validate(compact); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// DecodeScene validates doc against the schema, decodes it and checks block ranges.
func DecodeScene(doc []byte) (*scene.Scene, error) {
	if err := scene.Validate(doc); err != nil {
		return nil, err
	}
	var sc scene.Scene
	if err := json.Unmarshal(doc, &sc); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	if err := sc.Check(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// WriteAsset writes sc to <dir>/<name>.cutscene.json with transactional semantics and
// a timestamped backup of the previous file (if present).
func WriteAsset(dir string, sc *scene.Scene) (string, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "write_asset")
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("asset directory is required")
	}
	data, err := EncodeScene(sc)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sc.Name) == "" {
		return "", errors.New("scene name is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create asset dir: %w", err)
	}
	path := AssetPath(dir, sc.Name)

	if _, statErr := os.Stat(path); statErr == nil {
		bdir := filepath.Join(dir, BackupsDirName)
		stamp := time.Now().Format("20060102-150405.000000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return "", fmt.Errorf("backup current asset: %w", cerr)
		}
	}

	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return "", fmt.Errorf("write temp asset: %w", werr)
	}
	// Windows cannot rename over an existing file.
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return "", fmt.Errorf("replace asset: %w", rerr)
	}
	l.Info("asset written", slog.String("scene", sc.Name), slog.String("path", path))
	return path, nil
}

// ReadAsset loads and validates one asset file.
func ReadAsset(path string) (*scene.Scene, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	sc, err := DecodeScene(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// OpenAsset reads the named scene from dir, falling back to the latest backup when the
// current file is missing or invalid.
func OpenAsset(dir, name string) (*scene.Scene, error) {
	path := AssetPath(dir, name)
	sc, err := ReadAsset(path)
	if err == nil {
		return sc, nil
	}
	applog.WithComponent("storage").Warn("asset unreadable; trying backup", slog.String("path", path), slog.Any("err", err))
	sc, berr := readLatestBackup(dir, filepath.Base(path))
	if berr != nil {
		return nil, fmt.Errorf("%w; backup attempt: %v", err, berr)
	}
	return sc, nil
}

func readLatestBackup(dir, base string) (*scene.Scene, error) {
	bdir := filepath.Join(dir, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, base+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	return ReadAsset(candidates[len(candidates)-1])
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src to dst, overwriting dst.
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
