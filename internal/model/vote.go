package model

// VoteKind は投票対象の種別を表す。
type VoteKind string

const (
	// VoteKindQuestion は質問への投票を表す。
	VoteKindQuestion VoteKind = "question"
	// VoteKindAnswer は回答への投票を表す。
	VoteKindAnswer VoteKind = "answer"
)

// VoteTarget は投票対象（質問または回答）を表す。
type VoteTarget struct {
	Kind VoteKind
	ID   string
}

// QuestionTarget は質問を投票対象とするVoteTargetを返す。
func QuestionTarget(id string) VoteTarget {
	return VoteTarget{Kind: VoteKindQuestion, ID: id}
}

// AnswerTarget は回答を投票対象とするVoteTargetを返す。
func AnswerTarget(id string) VoteTarget {
	return VoteTarget{Kind: VoteKindAnswer, ID: id}
}

// Valid は種別が既知の値かどうかを返す。
func (t VoteTarget) Valid() bool {
	return t.Kind == VoteKindQuestion || t.Kind == VoteKindAnswer
}
