package limits

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	r := NewRegistry()
	r.Set("upload", 4, 2, 10<<20, 30*time.Second)

	l := r.Get("upload")
	require.NotNil(t, l)
	assert.Equal(t, 4, l.MaxRun)
	assert.Equal(t, int64(10<<20), l.MaxUpload)
}

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	r.Set("upload", 4, 2, 10<<20, 30*time.Second)
	require.NoError(t, r.Register("upload", "POST", "/upload", false))

	matched := r.Resolve("POST", "/upload")
	assert.Equal(t, "upload", matched.Name)

	fallback := r.Resolve("GET", "/other")
	assert.Equal(t, DefaultLimits.Name, fallback.Name)
}

func TestListByPattern(t *testing.T) {
	r := NewRegistry()
	r.Set("upload-a", 1, 1, 0, 0)
	r.Set("upload-b", 1, 1, 0, 0)
	r.Set("download", 1, 1, 0, 0)

	matches := r.List("upload-*")
	assert.Len(t, matches, 2)
}

func TestAdmitRespectsMaxRun(t *testing.T) {
	l := &Limits{Name: "tight", MaxRun: 1, MaxWait: 0}

	release1, err := l.Admit()
	require.NoError(t, err)
	require.NotNil(t, release1)

	_, err = l.Admit()
	assert.Error(t, err)

	release1()
	release2, err := l.Admit()
	require.NoError(t, err)
	release2()
}
