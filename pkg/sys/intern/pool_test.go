package intern

import (
	"strings"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestPoolReturnsCanonicalCopy(t *testing.T) {
	p := NewPool()

	first := p.String(strings.Repeat("src/", 2) + "main.go")
	second := p.String(strings.Repeat("src/", 2) + "main.go")

	assert.Equal(t, first, second)
	assert.Equal(t, unsafe.StringData(first), unsafe.StringData(second), "second lookup should share backing memory")
	assert.Equal(t, 1, p.Len())
}

func TestPoolIgnoresEmpty(t *testing.T) {
	p := NewPool()
	assert.Equal(t, "", p.String(""))
	assert.Equal(t, 0, p.Len())
}

func TestPoolConcurrentAccess(t *testing.T) {
	p := NewPool()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, s := range []string{"a.go", "b.go", "c.go"} {
				p.String(s)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, p.Len())
}

func TestGlobalReset(t *testing.T) {
	String("README.md")
	Reset()
	assert.Equal(t, 0, globalPool.Len())
}
