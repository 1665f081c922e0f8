package preview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/gravitypreview/internal/bundle"
)

func TestMemo_Normalize(t *testing.T) {
	ctx := context.Background()
	memo, err := NewMemo(8)
	require.NoError(t, err)

	in := newBundle(&bundle.Module{Path: "/src/pages/Home/index.jsx", Code: "home"})

	first, err := memo.Normalize(ctx, in, "1")
	require.NoError(t, err)
	require.Equal(t, 1, memo.Len())

	second, err := memo.Normalize(ctx, in, "1")
	require.NoError(t, err)
	require.Equal(t, 1, memo.Len())
	require.Equal(t, first.Modules.Paths(), second.Modules.Paths())

	_, err = memo.Normalize(ctx, in, "2")
	require.NoError(t, err)
	require.Equal(t, 2, memo.Len(), "a new refresh token is a new entry")

	in.Modules.Get("/src/pages/Home/index.jsx").Code = "changed"
	_, err = memo.Normalize(ctx, in, "2")
	require.NoError(t, err)
	require.Equal(t, 3, memo.Len(), "changed contents are a new entry")

	memo.Purge()
	require.Zero(t, memo.Len())
}

func TestMemo_resultsAreIsolated(t *testing.T) {
	ctx := context.Background()
	memo, err := NewMemo(8)
	require.NoError(t, err)

	in := newBundle(&bundle.Module{Path: "/src/pages/Home/index.jsx", Code: "home"})

	first, err := memo.Normalize(ctx, in, nil)
	require.NoError(t, err)
	first.Modules.Get("/src/app.js").Code = "tampered"
	first.Modules.Get("/src/shims.js").Code = "tampered"

	second, err := memo.Normalize(ctx, in, nil)
	require.NoError(t, err)
	require.NotEqual(t, "tampered", second.Modules.Get("/src/app.js").Code)
	require.Equal(t, shimsSource, second.Modules.Get("/src/shims.js").Code)
}

func TestMemo_checksumCollision(t *testing.T) {
	ctx := context.Background()
	memo, err := NewMemo(8)
	require.NoError(t, err)

	// both bodies give the encoded bundle the same CRC-64/NVME
	a := newBundle(&bundle.Module{Path: "/src/pages/Home/index.jsx", Code: "export default 'AAAAAAAAAAAAAAAA';"})
	b := newBundle(&bundle.Module{Path: "/src/pages/Home/index.jsx", Code: "export default 'tmksnaimxjkiwheg';"})

	dataA, err := bundle.Encode(a, false)
	require.NoError(t, err)
	dataB, err := bundle.Encode(b, false)
	require.NoError(t, err)
	require.Equal(t, keyFor(dataA, "1"), keyFor(dataB, "1"))

	outA, err := memo.Normalize(ctx, a, "1")
	require.NoError(t, err)
	require.Equal(t, "export default 'AAAAAAAAAAAAAAAA';", outA.Modules.Get("/src/pages/Home/index.js").Code)

	outB, err := memo.Normalize(ctx, b, "1")
	require.NoError(t, err)
	require.Equal(t, "export default 'tmksnaimxjkiwheg';", outB.Modules.Get("/src/pages/Home/index.js").Code)

	outA, err = memo.Normalize(ctx, a, "1")
	require.NoError(t, err)
	require.Equal(t, "export default 'AAAAAAAAAAAAAAAA';", outA.Modules.Get("/src/pages/Home/index.js").Code)
}

func TestMemo_errorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	memo, err := NewMemo(8)
	require.NoError(t, err)

	in := newBundle(&bundle.Module{Path: "/package.json", Code: "{"})

	_, err = memo.Normalize(ctx, in, nil)
	require.ErrorIs(t, err, ErrInvalidManifest)
	require.Zero(t, memo.Len())
}

func TestMemo_nilBundle(t *testing.T) {
	memo, err := NewMemo(8)
	require.NoError(t, err)

	out, err := memo.Normalize(context.Background(), nil, "1")
	require.NoError(t, err)
	require.Nil(t, out)
	require.Zero(t, memo.Len())
}

func TestNewMemo_invalidSize(t *testing.T) {
	_, err := NewMemo(0)
	require.Error(t, err)
}
