package redisx

import "fmt"

const ns = "theaterbook:v1"

func KeyCounter(category string) string {
	return fmt.Sprintf("%s:counter:%s", ns, category)
}

func KeyArchiveQuery(disposition, from, to string) string {
	return fmt.Sprintf("%s:archive:%s:%s:%s", ns, disposition, from, to)
}

func KeyStats() string {
	return ns + ":stats"
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelBookingArchived() string {
	return ns + ":bookings:archived"
}
