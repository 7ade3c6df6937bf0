package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBodies(t *testing.T) {
	msg := CheckoutEmail{
		Email:        "alice@example.com",
		StudentName:  "Alice Uwase",
		ExamName:     "final exam on 2025-03-10",
		CourseName:   "Distributed Systems",
		CheckInTime:  "10 Mar 2025, 09:05:00",
		CheckOutTime: "10 Mar 2025, 10:45:00",
		ExamRoom:     "A-101",
		DeviceName:   "Gate Reader",
	}

	text, err := msg.RenderText()
	require.NoError(t, err)
	assert.Contains(t, text, "Hello Alice Uwase")
	assert.Contains(t, text, "final exam on 2025-03-10")
	assert.Contains(t, text, "10 Mar 2025, 10:45:00")

	html, err := msg.RenderHTML()
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>final exam on 2025-03-10</strong>")
	assert.Contains(t, html, "Gate Reader")
}

func TestRenderHTMLEscapes(t *testing.T) {
	msg := CheckoutEmail{StudentName: "<script>alert(1)</script>"}
	html, err := msg.RenderHTML()
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}
