// Package notify は投稿作成時のリアルタイム通知のファンアウトを提供する。
// 接続中ユーザーの管理（Directory）、配信先の算出（BuildDeliveries）、
// 配信の非同期実行（Dispatcher）から構成される。
package notify

import "fmt"

// Kind は通知の種別を表す。
type Kind string

const (
	// KindNewPost は友達が新しい投稿を作成したことを表す。
	KindNewPost Kind = "new_post"
	// KindTagged は投稿でタグ付けされたことを表す。
	KindTagged Kind = "tagged"
)

// Message はクライアントに届ける通知本体。
// JSONのフィールド名はクライアントとの取り決めに従う。
type Message struct {
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
	PostID   string `json:"postId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Delivery は1人の受信者に対する1件の通知を表す。
type Delivery struct {
	RecipientID string
	Message     Message
}

// PostCreated は通知の元になる投稿作成イベント。
// FriendIDsは作成時点で保存されている作成者の友達一覧を渡すこと。
type PostCreated struct {
	AuthorID   string
	AuthorName string
	PostID     string
	FriendIDs  []string
	TaggedIDs  []string
}

// BuildDeliveries は投稿作成イベントから配信一覧を組み立てる。
//
// 友達向けのnew_postを友達の並び順で、続けてタグ付け向けのtaggedをタグの並び順で返す。
// 各集合内の重複と空IDは除き、作成者自身は常に除外する。
// 友達かつタグ付けされたユーザーには種別ごとに1件ずつ、計2件が生成される。
// 受信者の存在確認は行わない。
func BuildDeliveries(ev PostCreated) []Delivery {
	friends := recipients(ev.FriendIDs, ev.AuthorID)
	tagged := recipients(ev.TaggedIDs, ev.AuthorID)
	if len(friends)+len(tagged) == 0 {
		return nil
	}

	deliveries := make([]Delivery, 0, len(friends)+len(tagged))
	for _, id := range friends {
		deliveries = append(deliveries, Delivery{
			RecipientID: id,
			Message:     newMessage(KindNewPost, ev),
		})
	}
	for _, id := range tagged {
		deliveries = append(deliveries, Delivery{
			RecipientID: id,
			Message:     newMessage(KindTagged, ev),
		})
	}
	return deliveries
}

func newMessage(kind Kind, ev PostCreated) Message {
	return Message{
		Kind:     kind,
		Message:  renderText(kind, ev.AuthorName),
		PostID:   ev.PostID,
		UserID:   ev.AuthorID,
		UserName: ev.AuthorName,
	}
}

func renderText(kind Kind, authorName string) string {
	switch kind {
	case KindTagged:
		return fmt.Sprintf("%s has tagged you on a new post", authorName)
	default:
		return fmt.Sprintf("%s has created a new post", authorName)
	}
}

// recipients は入力順を保ったまま重複・空ID・作成者を取り除く。
func recipients(ids []string, authorID string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == authorID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
