package store

// Recorder receives store and cache measurements. The metrics package
// provides the Prometheus implementation.
type Recorder interface {
	RecordCacheHit(cacheName string)
	RecordCacheMiss(cacheName string)
	RecordCacheError(cacheName string)
	UpdateCacheSize(cacheName string, size int)
	RecordReload(store string, err error)
	UpdateRulesLoaded(store string, count int)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheHit(string)         {}
func (nopRecorder) RecordCacheMiss(string)        {}
func (nopRecorder) RecordCacheError(string)       {}
func (nopRecorder) UpdateCacheSize(string, int)   {}
func (nopRecorder) RecordReload(string, error)    {}
func (nopRecorder) UpdateRulesLoaded(string, int) {}

func orNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
