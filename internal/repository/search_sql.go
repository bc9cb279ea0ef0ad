package repository

import (
	"fmt"
	"strings"

	"github.com/hitoshi/qaboard/internal/search"
)

// questionColumns は質問本体のSQL列参照。
// questions q と members m（質問作成者）が結合されていることを前提とする。
var questionColumns = map[search.Field]string{
	search.FieldQuestionSubject:    "q.subject",
	search.FieldQuestionContent:    "q.content",
	search.FieldQuestionAuthorName: "m.name",
}

// answerColumns は回答側のSQL列参照。
// EXISTSサブクエリ内の answers a と members am（回答作成者）を参照する。
var answerColumns = map[search.Field]string{
	search.FieldAnswerContent:    "a.content",
	search.FieldAnswerAuthorName: "am.name",
}

// buildSearchCondition は検索条件をWHERE句とバインド引数に変換する。
// argIndexは最初に使うプレースホルダ番号。
//
// 回答側の条件はEXISTSで評価するため、1つの質問に複数の回答が一致しても
// 結果の行は増えない。これにより件数とページ境界が質問単位で正しくなる。
// キーワードなしの場合は "TRUE" を返す。
func buildSearchCondition(pred search.Predicate, argIndex int) (string, []any) {
	if pred.MatchAll() {
		return "TRUE", nil
	}

	placeholder := fmt.Sprintf("$%d", argIndex)
	like := func(column string) string {
		return fmt.Sprintf(`%s LIKE %s ESCAPE '\'`, column, placeholder)
	}

	var questionConds, answerConds []string
	for _, c := range pred.Clauses {
		if c.Field.IsAnswerField() {
			if col, ok := answerColumns[c.Field]; ok {
				answerConds = append(answerConds, like(col))
			}
			continue
		}
		if col, ok := questionColumns[c.Field]; ok {
			questionConds = append(questionConds, like(col))
		}
	}

	conds := questionConds
	if len(answerConds) > 0 {
		conds = append(conds, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM answers a JOIN members am ON am.id = a.author_id WHERE a.question_id = q.id AND (%s))`,
			strings.Join(answerConds, " OR "),
		))
	}
	if len(conds) == 0 {
		return "TRUE", nil
	}

	return "(" + strings.Join(conds, " OR ") + ")", []any{search.LikePattern(pred.Keyword)}
}
