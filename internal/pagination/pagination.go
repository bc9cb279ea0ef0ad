// Package pagination は結果集合を固定サイズのページに分割する。
// 並び順は常に作成日時の降順で、同時刻の場合はIDの昇順で安定させる。
package pagination

import (
	"math"
	"sort"
	"time"
)

// DefaultPageSize は1ページあたりの既定件数。
// 設定で変更できるが、ユーザー入力からは受け付けない。
const DefaultPageSize = 10

// Request はページ要求を表す。Pageは0始まり。
type Request struct {
	Page int
	Size int
}

// NewRequest はページ番号とサイズからRequestを生成する。
// 負のページ番号は0に、0以下のサイズはDefaultPageSizeに正規化する。
func NewRequest(page, size int) Request {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	return Request{Page: page, Size: size}
}

// Offset はSQLのOFFSETに渡す値を返す。
// Page*Sizeがintに収まらない場合はmath.MaxIntに飽和させ、最終ページより後ろとして扱わせる。
func (r Request) Offset() int {
	if r.Page <= 0 || r.Size <= 0 {
		return 0
	}
	if r.Page > math.MaxInt/r.Size {
		return math.MaxInt
	}
	return r.Page * r.Size
}

// Limit はSQLのLIMITに渡す値を返す。
func (r Request) Limit() int {
	return r.Size
}

// Page は順序付きの結果集合の1ページを表す。
type Page[T any] struct {
	Items      []T
	Page       int
	Size       int
	TotalItems int
	TotalPages int
}

// NewPage はページ内の要素と全件数からPageを組み立てる。
func NewPage[T any](items []T, req Request, totalItems int) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = (totalItems + req.Size - 1) / req.Size
	}
	return Page[T]{
		Items:      items,
		Page:       req.Page,
		Size:       req.Size,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// HasNext は次のページが存在するかを返す。
func (p Page[T]) HasNext() bool {
	return p.Page < p.TotalPages-1
}

// HasPrevious は前のページが存在するかを返す。
func (p Page[T]) HasPrevious() bool {
	return p.Page > 0
}

// IsEmpty はページに要素がないかを返す。
func (p Page[T]) IsEmpty() bool {
	return len(p.Items) == 0
}

// Paginate はメモリ上の候補集合を並べ替えて1ページ分を切り出す。
// 最終ページより後ろを要求した場合はエラーではなく空のページを返す。
// 入力スライスは変更しない。
func Paginate[T any](candidates []T, req Request, createdAt func(T) time.Time, id func(T) string) Page[T] {
	sorted := make([]T, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := createdAt(sorted[i]), createdAt(sorted[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return id(sorted[i]) < id(sorted[j])
	})

	start := req.Offset()
	if start >= len(sorted) {
		return NewPage([]T{}, req, len(sorted))
	}
	end := start + req.Limit()
	if end > len(sorted) {
		end = len(sorted)
	}
	return NewPage(sorted[start:end], req, len(sorted))
}
