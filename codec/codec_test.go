package codec

import (
	"bytes"
	"testing"

	"github.com/spacemeshos/go-scale"
	"github.com/stretchr/testify/require"
)

type pair struct {
	a [2]byte
	b [3]byte
}

func (p *pair) EncodeScale(e *scale.Encoder) (int, error) {
	n, err := scale.EncodeByteArray(e, p.a[:])
	if err != nil {
		return n, err
	}
	m, err := scale.EncodeByteArray(e, p.b[:])
	return n + m, err
}

func (p *pair) DecodeScale(d *scale.Decoder) (int, error) {
	n, err := scale.DecodeByteArray(d, p.a[:])
	if err != nil {
		return n, err
	}
	m, err := scale.DecodeByteArray(d, p.b[:])
	return n + m, err
}

func TestEncodeDecode(t *testing.T) {
	p := pair{a: [2]byte{1, 2}, b: [3]byte{3, 4, 5}}
	var buf bytes.Buffer
	n, err := EncodeTo(&buf, &p)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, buf.Bytes())

	var decoded pair
	n, err = DecodeFrom(bytes.NewReader(buf.Bytes()), &decoded)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, p, decoded)

	_, err = DecodeFrom(bytes.NewReader(buf.Bytes()[:4]), &decoded)
	require.Error(t, err)
}

func TestFixedWriter(t *testing.T) {
	buf := make([]byte, 7)
	w := NewFixedWriter(buf)
	p := pair{a: [2]byte{1, 2}, b: [3]byte{3, 4, 5}}
	n, err := EncodeTo(w, &p)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, 5, w.Len())
	require.Equal(t, 2, w.Available())

	_, err = EncodeTo(w, &p)
	require.Error(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, buf[:5])
}
