// Package attachment は質問に添付された画像の保存と取得を行う。
//
// 保存名は常に「UUID + "." + 元ファイル名の拡張子」で生成し、ユーザーが指定した
// ファイル名をそのままストレージに渡すことはない。実体の読み書きはBackendに委譲する。
package attachment

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/hitoshi/qaboard/internal/model"
)

var (
	// ErrObjectExists は同名のオブジェクトが既に存在する場合にBackendが返す。
	ErrObjectExists = errors.New("attachment: object already exists")
	// ErrObjectNotFound はオブジェクトが存在しない場合にBackendが返す。
	ErrObjectNotFound = errors.New("attachment: object not found")
)

const (
	// maxFilenameLen は元ファイル名として保存できる最大文字数（original_filename列の上限）。
	maxFilenameLen = 255
	// maxStoredFilenameBytes は保存名の最大バイト数。一般的なファイルシステムの上限に合わせる。
	maxStoredFilenameBytes = 255
)

// sniffLen はContent-Type判定に使う先頭バイト数。mimetypeの既定の読み取り上限に合わせる。
const sniffLen = 3072

// Backend は添付ファイルの実体を保存するストレージを表す。
type Backend interface {
	// Put はkeyでオブジェクトを作成する。既に存在する場合は上書きせずErrObjectExistsを返す。
	Put(ctx context.Context, key string, r io.Reader) error
	// Get はオブジェクトの内容とサイズを返す。存在しない場合はErrObjectNotFoundを返す。
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	// Delete はオブジェクトを削除する。存在しない場合はErrObjectNotFoundを返す。
	Delete(ctx context.Context, key string) error
}

// Object はダウンロード対象の添付ファイルを表す。Bodyは呼び出し側でCloseすること。
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Store は添付ファイルの保存・取得・削除を行う。
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// NewStore はStoreを生成する。
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger}
}

// Save はアップロードされた内容を新しい保存名で書き込む。
// 内容が空（nilまたは0バイト）の場合は添付なしとして (nil, nil) を返し、何も書き込まない。
func (s *Store) Save(ctx context.Context, originalFilename string, r io.Reader) (*model.Attachment, error) {
	if r == nil {
		return nil, nil
	}

	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, model.NewAttachmentIOError(err.Error())
	}

	if err := CheckFilename(originalFilename); err != nil {
		return nil, err
	}

	stored := NewStoredFilename(originalFilename)
	if err := s.backend.Put(ctx, stored, br); err != nil {
		s.logger.Error("添付ファイルの保存に失敗しました",
			slog.String("stored_filename", stored),
			slog.String("error", err.Error()),
		)
		return nil, model.NewAttachmentIOError(err.Error())
	}

	s.logger.Info("添付ファイルを保存しました",
		slog.String("original_filename", originalFilename),
		slog.String("stored_filename", stored),
	)

	return &model.Attachment{
		OriginalFilename: originalFilename,
		StoredFilename:   stored,
	}, nil
}

// Open は保存名で添付ファイルを開く。
// 保存名の形式でない名前はストレージに問い合わせずにATTACHMENT_NOT_FOUNDを返す。
func (s *Store) Open(ctx context.Context, storedFilename string) (*Object, error) {
	if !ValidStoredFilename(storedFilename) {
		return nil, model.NewAttachmentNotFoundError(storedFilename)
	}

	body, size, err := s.backend.Get(ctx, storedFilename)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, model.NewAttachmentNotFoundError(storedFilename)
	}
	if err != nil {
		return nil, model.NewAttachmentIOError(err.Error())
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		body.Close()
		return nil, model.NewAttachmentIOError(err.Error())
	}
	head = head[:n]

	return &Object{
		Body: readCloser{
			Reader: io.MultiReader(bytes.NewReader(head), body),
			Closer: body,
		},
		Size:        size,
		ContentType: mimetype.Detect(head).String(),
	}, nil
}

// Delete は添付ファイルを削除する。既に存在しない場合は何もしない。
func (s *Store) Delete(ctx context.Context, storedFilename string) error {
	if !ValidStoredFilename(storedFilename) {
		return model.NewAttachmentNotFoundError(storedFilename)
	}
	err := s.backend.Delete(ctx, storedFilename)
	if err != nil && !errors.Is(err, ErrObjectNotFound) {
		return model.NewAttachmentIOError(err.Error())
	}
	return nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// Extension は元ファイル名の最後の "." より後ろを返す。"." がない場合は空文字列。
// 大文字小文字はそのまま保持する。ディレクトリ部分は取り除いてから判定する。
func Extension(originalFilename string) string {
	name := originalFilename
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return name[i+1:]
}

// CheckFilename は元ファイル名が保存できる形かを検証し、不正な場合はVALIDATION_FAILEDエラーを返す。
// 不正なUTF-8や制御文字を含む名前、長すぎる名前、保存名が上限を超える拡張子を拒否する。
func CheckFilename(originalFilename string) error {
	if !utf8.ValidString(originalFilename) {
		return model.NewValidationError("ファイル名の文字コードが不正です")
	}
	if strings.ContainsFunc(originalFilename, unicode.IsControl) {
		return model.NewValidationError("ファイル名に制御文字は使用できません")
	}
	if utf8.RuneCountInString(originalFilename) > maxFilenameLen {
		return model.NewValidationError("ファイル名が長すぎます")
	}
	if len(uuid.Nil.String())+1+len(Extension(originalFilename)) > maxStoredFilenameBytes {
		return model.NewValidationError("ファイルの拡張子が長すぎます")
	}
	return nil
}

// NewStoredFilename は衝突しない保存名（UUID + "." + 拡張子）を生成する。
// 拡張子がない場合も "." は付与する。
func NewStoredFilename(originalFilename string) string {
	return uuid.NewString() + "." + Extension(originalFilename)
}

// ValidStoredFilename は名前がNewStoredFilenameの生成する形式かを返す。
// パス区切り文字を含む名前は常に不正とする。
func ValidStoredFilename(name string) bool {
	const uuidLen = 36
	if len(name) <= uuidLen || name[uuidLen] != '.' {
		return false
	}
	id, err := uuid.Parse(name[:uuidLen])
	if err != nil || id.String() != name[:uuidLen] {
		return false
	}
	return !strings.ContainsAny(name[uuidLen+1:], "/\\\x00")
}
