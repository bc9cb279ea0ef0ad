package search

import "strings"

// likeEscaper はLIKEのメタ文字をエスケープする。エスケープ文字は '\'。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern はキーワードを部分一致用のLIKEパターン（%keyword%）に変換する。
// キーワード中の % と _ はワイルドカードとして解釈されず、リテラルとして一致する。
// SQL側では ESCAPE '\' を指定すること。
func LikePattern(keyword string) string {
	return "%" + likeEscaper.Replace(keyword) + "%"
}
