package isb

import (
	"strconv"
)

// SimpleStringOffset is an Offset convenience function for implementations
// without needing AckIt() when the offset is a string.
type SimpleStringOffset func() string

func (so SimpleStringOffset) String() string {
	return so()
}

func (so SimpleStringOffset) Sequence() (int64, error) {
	return strconv.ParseInt(so(), 10, 64)
}

func (so SimpleStringOffset) AckIt() error {
	return nil
}

func (so SimpleStringOffset) NoAck() error {
	return nil
}

// SimpleIntOffset is an Offset convenience function for implementations
// without needing AckIt() when the offset is an int64.
type SimpleIntOffset func() int64

func (si SimpleIntOffset) String() string {
	return strconv.FormatInt(si(), 10)
}

func (si SimpleIntOffset) Sequence() (int64, error) {
	return si(), nil
}

func (si SimpleIntOffset) AckIt() error {
	return nil
}

func (si SimpleIntOffset) NoAck() error {
	return nil
}
