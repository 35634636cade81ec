package codec

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/aretw0/lockbox/pkg/core"
)

func pack(files core.FileMap, comp CompressionOptions) ([]byte, error) {
	for p := range files {
		if clean, err := core.CleanPath(p); err != nil || clean != p {
			return nil, fmt.Errorf("invalid path %q", p)
		}
	}
	if comp.Solid {
		return packSolid(files, comp.Level)
	}
	return packEntries(files, comp.Level)
}

func unpack(payload []byte, comp CompressionOptions) (core.FileMap, error) {
	if comp.Solid {
		return unpackSolid(payload)
	}
	return unpackEntries(payload)
}

// packSolid writes a tar stream through a single deflate stream.
func packSolid(files core.FileMap, level int) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(fw)
	for _, p := range files.Paths() {
		content := files[p]
		hdr := &tar.Header{
			Name:     p,
			Mode:     0o600,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(content); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unpackSolid(payload []byte) (core.FileMap, error) {
	fr := flate.NewReader(bytes.NewReader(payload))
	defer fr.Close()

	tr := tar.NewReader(io.LimitReader(fr, MaxPayloadSize+1))
	files := core.FileMap{}
	total := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read solid stream: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			return nil, fmt.Errorf("unexpected entry type %q for %s", hdr.Typeflag, hdr.Name)
		}
		name, err := entryName(files, hdr.Name)
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if total += len(content); total > MaxPayloadSize {
			return nil, fmt.Errorf("payload exceeds %d bytes", MaxPayloadSize)
		}
		files[name] = content
	}
	return files, nil
}

// packEntries writes a zip with every entry compressed on its own.
func packEntries(files core.FileMap, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	method := zip.Deflate
	if level == 0 {
		method = zip.Store
	}
	for _, p := range files.Paths() {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p, Method: method})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(files[p]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unpackEntries(payload []byte) (core.FileMap, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	files := core.FileMap{}
	var total uint64
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, err := entryName(files, f.Name)
		if err != nil {
			return nil, err
		}
		if total += f.UncompressedSize64; total > MaxPayloadSize {
			return nil, fmt.Errorf("payload exceeds %d bytes", MaxPayloadSize)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, int64(f.UncompressedSize64)+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		files[name] = content
	}
	return files, nil
}

func entryName(seen core.FileMap, raw string) (string, error) {
	name, err := core.CleanPath(raw)
	if err != nil {
		return "", err
	}
	if name != raw {
		return "", fmt.Errorf("non-canonical entry name %q", raw)
	}
	if _, dup := seen[name]; dup {
		return "", fmt.Errorf("duplicate entry %q", name)
	}
	return name, nil
}
