package timetable

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Source supplies the raw daily snapshot and reference files. The network
// side of the fetch lives here so the store itself never blocks on I/O
// concerns beyond a single load call.
type Source interface {
	OpenSnapshot(day time.Time) (io.ReadCloser, error)
	OpenReference(day time.Time) (io.ReadCloser, error)
}

// HTTPSource downloads timetable files from a remote mirror. URLs may
// contain {date}, replaced with the operating day as YYYYMMDD.
type HTTPSource struct {
	SnapshotURL  string
	ReferenceURL string
}

func (s HTTPSource) OpenSnapshot(day time.Time) (io.ReadCloser, error) {
	return openURL(expandDate(s.SnapshotURL, day))
}

func (s HTTPSource) OpenReference(day time.Time) (io.ReadCloser, error) {
	if s.ReferenceURL == "" {
		return nil, fmt.Errorf("no reference url configured")
	}

	return openURL(expandDate(s.ReferenceURL, day))
}

func expandDate(url string, day time.Time) string {
	return strings.ReplaceAll(url, "{date}", day.Format("20060102"))
}

func openURL(url string) (io.ReadCloser, error) {
	req, _ := http.NewRequest("GET", url, nil)
	req.Header["user-agent"] = []string{"curl/7.54.1"}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	return maybeGunzip(resp.Body, url)
}

// FileSource reads snapshot files from local disk, mostly for the operator
// trigger and tests.
type FileSource struct {
	SnapshotPath  string
	ReferencePath string
}

func (s FileSource) OpenSnapshot(day time.Time) (io.ReadCloser, error) {
	file, err := os.Open(expandDate(s.SnapshotPath, day))
	if err != nil {
		return nil, err
	}

	return maybeGunzip(file, s.SnapshotPath)
}

func (s FileSource) OpenReference(day time.Time) (io.ReadCloser, error) {
	if s.ReferencePath == "" {
		return nil, fmt.Errorf("no reference path configured")
	}

	file, err := os.Open(expandDate(s.ReferencePath, day))
	if err != nil {
		return nil, err
	}

	return maybeGunzip(file, s.ReferencePath)
}

type gzipReadCloser struct {
	gzip       *gzip.Reader
	underlying io.ReadCloser
}

func (g gzipReadCloser) Read(p []byte) (int, error) {
	return g.gzip.Read(p)
}

func (g gzipReadCloser) Close() error {
	g.gzip.Close()
	return g.underlying.Close()
}

func maybeGunzip(reader io.ReadCloser, name string) (io.ReadCloser, error) {
	if filepath.Ext(strings.Split(name, "?")[0]) != ".gz" {
		return reader, nil
	}

	gzipDecoder, err := gzip.NewReader(reader)
	if err != nil {
		reader.Close()
		return nil, err
	}

	return gzipReadCloser{gzip: gzipDecoder, underlying: reader}, nil
}
