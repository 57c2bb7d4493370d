package main

import (
	"io"
	"sync"

	"github.com/mailru/easyjson/jwriter"
	"github.com/spf13/afero"

	"github.com/coredht/dht/krpc"
)

// discoveryRecord is the one JSON object the run command prints per newly
// discovered node.
type discoveryRecord struct {
	ID             krpc.NodeID
	From           krpc.Endpoint
	Query          string
	Address        krpc.Endpoint
	TimeDiscovered int64 // unix seconds
}

// MarshalEasyJSON writes the record by hand against jwriter.Writer rather
// than through the easyjson code generator, so the node stays free of a
// generated-code build step for one small fixed-shape record.
func (r discoveryRecord) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"id":`)
	w.String(r.ID.String())
	w.RawString(`,"from":`)
	w.String(r.From.String())
	w.RawString(`,"query":`)
	w.String(r.Query)
	w.RawString(`,"address":`)
	w.String(r.Address.String())
	w.RawString(`,"time_discovered":`)
	w.Int64(r.TimeDiscovered)
	w.RawByte('}')
}

// discoverySink serializes discoveryRecord values as newline-delimited
// JSON somewhere: a file on disk, or directly onto an io.Writer such as
// stdout.
type discoverySink interface {
	Write(r discoveryRecord) error
}

func writeRecord(w io.Writer, r discoveryRecord) error {
	jw := jwriter.Writer{}
	r.MarshalEasyJSON(&jw)
	if jw.Error != nil {
		return jw.Error
	}
	if _, err := jw.Buffer.DumpTo(w); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}

// fileDiscoverySink appends records to a path on an afero.Fs, reopening
// the file on every write so the run command's output path is
// unit-testable without touching the real filesystem.
type fileDiscoverySink struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

func newDiscoverySink(fs afero.Fs, path string) *fileDiscoverySink {
	return &fileDiscoverySink{fs: fs, path: path}
}

func (s *fileDiscoverySink) Write(r discoveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fs.OpenFile(s.path, osAppendFlags, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	return writeRecord(f, r)
}

// streamDiscoverySink writes records straight to an io.Writer such as
// os.Stdout, guarded by a mutex since discovery can be reported from
// multiple goroutines.
type streamDiscoverySink struct {
	mu sync.Mutex
	w  io.Writer
}

func newStreamDiscoverySink(w io.Writer) *streamDiscoverySink {
	return &streamDiscoverySink{w: w}
}

func (s *streamDiscoverySink) Write(r discoveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeRecord(s.w, r)
}
