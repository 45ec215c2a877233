package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirebaseDownloadURL(t *testing.T) {
	got := firebaseDownloadURL("demo.appspot.com", "profile_photos/uid-1", "tok en")
	assert.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/demo.appspot.com/o/profile_photos%2Fuid-1?alt=media&token=tok+en",
		got,
	)
}

func TestFirstToken(t *testing.T) {
	assert.Equal(t, "a", firstToken("a,b"))
	assert.Equal(t, "a", firstToken(" a "))
	assert.Equal(t, "", firstToken(""))
}
