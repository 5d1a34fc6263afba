package fanout

import "strings"

// Expo push tokens; everything else goes to FCM.
var expoPrefixes = []string{"ExponentPushToken[", "ExpoPushToken["}

// Partition splits an audience by provider. Order within each side follows
// the input.
type Partition struct {
	Expo []string
	FCM  []string
}

func (p Partition) Len() int {
	return len(p.Expo) + len(p.FCM)
}

// IsExpoToken reports whether token has the Expo push token shape.
func IsExpoToken(token string) bool {
	for _, prefix := range expoPrefixes {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}

// Classify puts every token in exactly one side of the partition.
func Classify(tokens []string) Partition {
	var p Partition
	for _, t := range tokens {
		if IsExpoToken(t) {
			p.Expo = append(p.Expo, t)
		} else {
			p.FCM = append(p.FCM, t)
		}
	}
	return p
}
