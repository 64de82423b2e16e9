package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/credential"
)

func TestKeyPool_FIFORotation(t *testing.T) {
	p := NewKeyPool(nil)
	defer p.Close()

	k1 := credential.NewKeyStatus("key-1")
	k2 := credential.NewKeyStatus("key-2")
	p.Submit(k1)
	p.Submit(k2)

	got1, err := p.Request()
	require.NoError(t, err)
	got2, err := p.Request()
	require.NoError(t, err)
	got3, err := p.Request()
	require.NoError(t, err)

	assert.Equal(t, "key-1", got1.Key.String())
	assert.Equal(t, "key-2", got2.Key.String())
	assert.Equal(t, "key-1", got3.Key.String(), "deque should have rotated back to the front")
}

func TestKeyPool_ReturnCommitsCount403(t *testing.T) {
	p := NewKeyPool(nil)
	defer p.Close()

	p.Submit(credential.NewKeyStatus("key-1"))
	k, err := p.Request()
	require.NoError(t, err)

	k.Count403 = 3
	p.Return(k)

	status := p.GetStatus()
	require.Len(t, status, 1)
	assert.Equal(t, 3, status[0].Count403)
}

func TestKeyPool_EmptyPoolErrors(t *testing.T) {
	p := NewKeyPool(nil)
	defer p.Close()
	_, err := p.Request()
	assert.Error(t, err)
}

func TestKeyPool_Delete(t *testing.T) {
	p := NewKeyPool(nil)
	defer p.Close()

	k := credential.NewKeyStatus("key-1")
	p.Submit(k)
	require.NoError(t, p.Delete(k))
	assert.Error(t, p.Delete(k))
}
