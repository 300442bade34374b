package device

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		expected string
	}{
		{
			name:     "resource only",
			err:      &NotFoundError{Resource: "service"},
			expected: "service not found",
		},
		{
			name:     "single uuid",
			err:      &NotFoundError{Resource: "service", UUIDs: []string{"180d"}},
			expected: `service "180d" not found`,
		},
		{
			name:     "characteristic in service",
			err:      &NotFoundError{Resource: "characteristic", UUIDs: []string{"180d", "2a37"}},
			expected: `characteristic "2a37" not found in service "180d"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestConnectionError_Is(t *testing.T) {
	wrapped := fmt.Errorf("write failed: %w", &ConnectionError{State: NotConnected, Msg: "peer went away"})

	assert.ErrorIs(t, wrapped, ErrNotConnected, "ConnectionError MUST match sentinel by state")
	assert.NotErrorIs(t, wrapped, ErrAlreadyConnected, "different states MUST NOT match")
	assert.True(t, IsConnectionState(wrapped, NotConnected))
	assert.False(t, IsConnectionState(errors.New("plain"), NotConnected))
	assert.Equal(t, "not_connected: peer went away", errors.Unwrap(wrapped).Error())
}

func TestConnectionError_NilSafe(t *testing.T) {
	var e *ConnectionError
	assert.Equal(t, "<nil>", e.Error())
	assert.False(t, e.Is(ErrNotConnected))
}

type fakeProperty struct {
	value int
	name  string
}

func (p *fakeProperty) Value() int        { return p.value }
func (p *fakeProperty) KnownName() string { return p.name }

type fakeProperties struct {
	read, write, writeNR, notify Property
}

func (p *fakeProperties) Broadcast() Property                 { return nil }
func (p *fakeProperties) Read() Property                      { return p.read }
func (p *fakeProperties) Write() Property                     { return p.write }
func (p *fakeProperties) WriteWithoutResponse() Property      { return p.writeNR }
func (p *fakeProperties) Notify() Property                    { return p.notify }
func (p *fakeProperties) Indicate() Property                  { return nil }
func (p *fakeProperties) AuthenticatedSignedWrites() Property { return nil }
func (p *fakeProperties) ExtendedProperties() Property        { return nil }

type fakeCharInfo struct {
	props Properties
}

func (c *fakeCharInfo) UUID() string              { return "2a06" }
func (c *fakeCharInfo) KnownName() string         { return "" }
func (c *fakeCharInfo) GetProperties() Properties { return c.props }

func TestCanWrite(t *testing.T) {
	write := &fakeProperty{value: 0x08, name: "Write"}
	writeNR := &fakeProperty{value: 0x04, name: "WriteWithoutResponse"}

	w, wnr := CanWrite(&fakeCharInfo{props: &fakeProperties{write: write, writeNR: writeNR}})
	assert.True(t, w)
	assert.True(t, wnr)

	w, wnr = CanWrite(&fakeCharInfo{props: &fakeProperties{read: &fakeProperty{value: 0x02, name: "Read"}}})
	assert.False(t, w)
	assert.False(t, wnr)

	w, wnr = CanWrite(&fakeCharInfo{})
	assert.False(t, w)
	assert.False(t, wnr)
}

func TestPropertyNames(t *testing.T) {
	props := &fakeProperties{
		read:   &fakeProperty{value: 0x02, name: "Read"},
		write:  &fakeProperty{value: 0x08, name: "Write"},
		notify: &fakeProperty{value: 0x10, name: "Notify"},
	}

	assert.Equal(t, []string{"Read", "Write", "Notify"}, PropertyNames(props))
	assert.Nil(t, PropertyNames(nil))
}

func TestVendorName(t *testing.T) {
	assert.Equal(t, "Apple, Inc.", VendorName([]byte{0x4c, 0x00, 0x02, 0x15}))
	assert.Equal(t, "", VendorName([]byte{0x4c}))
	assert.Equal(t, "", VendorName([]byte{0x34, 0x12}))

	id, ok := ManufacturerID([]byte{0x59, 0x00})
	assert.True(t, ok)
	assert.Equal(t, uint16(0x0059), id)
}

func TestFlagProperties(t *testing.T) {
	props := NewProperties(PropRead | PropWrite | PropNotify)

	assert.NotNil(t, props.Read())
	assert.NotNil(t, props.Write())
	assert.NotNil(t, props.Notify())
	assert.Nil(t, props.WriteWithoutResponse())
	assert.Nil(t, props.Indicate())
	assert.Equal(t, PropWrite, props.Write().Value())
	assert.Equal(t, []string{"Read", "Write", "Notify"}, PropertyNames(props))

	w, wnr := CanWrite(&fakeCharInfo{props: NewProperties(PropWriteWithoutResponse)})
	assert.False(t, w)
	assert.True(t, wnr)
}

func TestIsValidDeviceName(t *testing.T) {
	assert.True(t, IsValidDeviceName("Thermo-42"))
	assert.False(t, IsValidDeviceName("ab"), "names shorter than 3 characters MUST be rejected")
	assert.False(t, IsValidDeviceName("12345"), "names without letters MUST be rejected")
	assert.False(t, IsValidDeviceName("ThisNameIsDefinitelyLongerThan32Chars"))
}

func TestNameFromManufacturerData(t *testing.T) {
	assert.Equal(t, "Sensor", NameFromManufacturerData([]byte{0xe5, 0x02, 0x01, 'S', 'e', 'n', 's', 'o', 'r', 0x00}))
	assert.Equal(t, "", NameFromManufacturerData([]byte{'A', 'B', 'C', 'D'}[:3]))
	assert.Equal(t, "", NameFromManufacturerData(nil))
}
