package redisx

import "fmt"

// Realtime fan-out channel per room: notify:room:{room}.
// Rooms are user ids plus the shared "admin" room.
const keyRoomChannel = "notify:room:%s"

func RoomChannel(room string) string {
	return fmt.Sprintf(keyRoomChannel, room)
}
