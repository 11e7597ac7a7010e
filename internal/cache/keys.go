package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// Key prefixes, usable with (*Manager).RemovePrefix.
const (
	PrefixPostsList      = "posts_list_"
	PrefixPost           = "post_"
	PrefixUserPosts      = "user_posts_"
	PrefixRoomMessages   = "room_messages_"
	PrefixUserExpenses   = "user_expenses_"
	PrefixExpenseSummary = "expense_summary_"
)

func PostsListKey(limit, offset int) string {
	return fmt.Sprintf("%s%d_%d", PrefixPostsList, limit, offset)
}

func PostKey(id int64) string {
	return fmt.Sprintf("%s%d", PrefixPost, id)
}

func UserPostsKey(userID uuid.UUID) string {
	return PrefixUserPosts + userID.String()
}

func RoomMessagesKey(roomID uuid.UUID, limit int) string {
	return fmt.Sprintf("%s%s_%d", PrefixRoomMessages, roomID, limit)
}

// RoomMessagesPrefix matches every history page of one room.
func RoomMessagesPrefix(roomID uuid.UUID) string {
	return PrefixRoomMessages + roomID.String() + "_"
}

func UserExpensesKey(userID uuid.UUID) string {
	return PrefixUserExpenses + userID.String()
}

// ExpenseSummaryKey takes month as "YYYY-MM".
func ExpenseSummaryKey(userID uuid.UUID, month string) string {
	return fmt.Sprintf("%s%s_%s", PrefixExpenseSummary, userID, month)
}

// ExpenseSummaryPrefix matches every monthly summary of one user.
func ExpenseSummaryPrefix(userID uuid.UUID) string {
	return PrefixExpenseSummary + userID.String() + "_"
}
