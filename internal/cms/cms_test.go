package cms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	deletes []int64
}

func (w *recordingWriter) Save(_ context.Context, obj Object, _ []byte) (Object, error) {
	return obj, nil
}

func (w *recordingWriter) Publish(_ context.Context, _ int64) error { return nil }

func (w *recordingWriter) Delete(_ context.Context, _ Kind, id int64) error {
	w.deletes = append(w.deletes, id)
	return nil
}

func TestDelete_BuiltinNeverReachesRemote(t *testing.T) {
	w := &recordingWriter{}

	for _, obj := range []Object{
		BuiltinPage{Meta: Meta{ID: 7}, SystemName: "search"},
		BuiltinPartial{Meta: Meta{ID: 8}, SystemName: "submenu"},
	} {
		err := Delete(context.Background(), w, obj)
		require.ErrorIs(t, err, ErrCannotDeleteBuiltin)
	}
	assert.Empty(t, w.deletes)
}

func TestDelete_SkipsObjectsWithoutID(t *testing.T) {
	w := &recordingWriter{}
	require.NoError(t, Delete(context.Background(), w, Page{Path: "/new"}))
	assert.Empty(t, w.deletes)

	require.NoError(t, Delete(context.Background(), w, File{Meta: Meta{ID: 3}}))
	assert.Equal(t, []int64{3}, w.deletes)
}

func TestCopyIdentity(t *testing.T) {
	tests := []struct {
		name   string
		target Object
		source Object
		want   Object
	}{
		{
			name:   "section",
			target: Section{SystemName: "blog", Path: "/blog"},
			source: Section{Meta: Meta{ID: 10}, ParentID: 1, Path: "/blog"},
			want:   Section{Meta: Meta{ID: 10}, ParentID: 1, SystemName: "blog", Path: "/blog"},
		},
		{
			name:   "file",
			target: File{Path: "/logo.png"},
			source: File{Meta: Meta{ID: 11}, SectionID: 2},
			want:   File{Meta: Meta{ID: 11}, SectionID: 2, Path: "/logo.png"},
		},
		{
			name:   "page from page",
			target: Page{Path: "/about"},
			source: Page{Meta: Meta{ID: 12}, SectionID: 3},
			want:   Page{Meta: Meta{ID: 12}, SectionID: 3, Path: "/about"},
		},
		{
			name:   "page from builtin page",
			target: Page{Path: "/search"},
			source: BuiltinPage{Meta: Meta{ID: 13}, SystemName: "search"},
			want:   Page{Meta: Meta{ID: 13}, Path: "/search"},
		},
		{
			name:   "layout",
			target: Layout{SystemName: "main_layout"},
			source: Layout{Meta: Meta{ID: 14}},
			want:   Layout{Meta: Meta{ID: 14}, SystemName: "main_layout"},
		},
		{
			name:   "partial from builtin partial",
			target: Partial{SystemName: "submenu"},
			source: BuiltinPartial{Meta: Meta{ID: 15}},
			want:   Partial{Meta: Meta{ID: 15}, SystemName: "submenu"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CopyIdentity(tt.target, tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCopyIdentity_RejectsKindChange(t *testing.T) {
	_, err := CopyIdentity(File{Path: "/about"}, Page{Meta: Meta{ID: 1}})
	require.ErrorIs(t, err, ErrIncompatibleTypeChange)

	_, err = CopyIdentity(Section{Path: "/x"}, File{Meta: Meta{ID: 1}})
	require.ErrorIs(t, err, ErrIncompatibleTypeChange)
}

func TestWithChangesLeavesOriginalUntouched(t *testing.T) {
	orig := Page{Path: "/about", ContentType: "text/html"}
	changed := orig.WithLayout("main_layout").WithSectionID(4)

	assert.Empty(t, orig.Layout)
	assert.Zero(t, orig.SectionID)
	assert.Equal(t, "main_layout", changed.Layout)
	assert.Equal(t, int64(4), changed.SectionID)
}

func TestParentRef(t *testing.T) {
	id, ok := ParentRef(Section{ParentID: 5})
	assert.True(t, ok)
	assert.Equal(t, int64(5), id)

	_, ok = ParentRef(Layout{})
	assert.False(t, ok)

	obj, err := WithParentRef(File{Path: "/a.png"}, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), obj.(File).SectionID)

	_, err = WithParentRef(Partial{}, 9)
	require.ErrorIs(t, err, ErrUnrecognizedVariant)
}

func TestBuiltinAndKind(t *testing.T) {
	assert.True(t, BuiltinPage{}.Builtin())
	assert.True(t, BuiltinPartial{}.Builtin())
	assert.False(t, Page{}.Builtin())
	assert.Equal(t, KindTemplate, Layout{}.Kind())
	assert.Equal(t, KindSection, Section{}.Kind())
	assert.Equal(t, "builtin_page", Variant(BuiltinPage{}))
}
