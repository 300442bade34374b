package device

// GATT characteristic property bits as defined by the Bluetooth Core specification
// (Vol 3, Part G, 3.3.1.1).
const (
	PropBroadcast            = 0x01
	PropRead                 = 0x02
	PropWriteWithoutResponse = 0x04
	PropWrite                = 0x08
	PropNotify               = 0x10
	PropIndicate             = 0x20
	PropSignedWrite          = 0x40
	PropExtended             = 0x80
)

var propertyNames = [...]struct {
	bit  int
	name string
}{
	{PropBroadcast, "Broadcast"},
	{PropRead, "Read"},
	{PropWriteWithoutResponse, "WriteWithoutResponse"},
	{PropWrite, "Write"},
	{PropNotify, "Notify"},
	{PropIndicate, "Indicate"},
	{PropSignedWrite, "AuthenticatedSignedWrites"},
	{PropExtended, "ExtendedProperties"},
}

// flagProperty is a single set property bit with its name.
type flagProperty struct {
	value int
	name  string
}

func (p *flagProperty) Value() int        { return p.value }
func (p *flagProperty) KnownName() string { return p.name }

// FlagProperties implements Properties over the raw GATT property bit field.
type FlagProperties int

// NewProperties wraps a GATT property bit field.
func NewProperties(flags int) Properties {
	return FlagProperties(flags)
}

func (f FlagProperties) get(bit int) Property {
	if int(f)&bit == 0 {
		return nil
	}
	for _, pn := range propertyNames {
		if pn.bit == bit {
			return &flagProperty{value: bit, name: pn.name}
		}
	}
	return nil
}

func (f FlagProperties) Broadcast() Property                 { return f.get(PropBroadcast) }
func (f FlagProperties) Read() Property                      { return f.get(PropRead) }
func (f FlagProperties) WriteWithoutResponse() Property      { return f.get(PropWriteWithoutResponse) }
func (f FlagProperties) Write() Property                     { return f.get(PropWrite) }
func (f FlagProperties) Notify() Property                    { return f.get(PropNotify) }
func (f FlagProperties) Indicate() Property                  { return f.get(PropIndicate) }
func (f FlagProperties) AuthenticatedSignedWrites() Property { return f.get(PropSignedWrite) }
func (f FlagProperties) ExtendedProperties() Property        { return f.get(PropExtended) }
