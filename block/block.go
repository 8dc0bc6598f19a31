// Package block defines the content-addressed, cryptographically signed
// records that flow through the ingestion pipeline: an immutable record with
// a hash, a predecessor reference within its account chain, a root, an
// optional cross-chain source, a signature, and a proof-of-work nonce.
//
// The interface/getter shape mirrors the teacher's core/types transaction
// variants (originTxdata's Txdata interface), generalized from a single
// concrete payload to the five block kinds a DAG ledger actually needs.
package block

// Type enumerates the block variants a ledger recognizes.
type Type int

const (
	TypeInvalid Type = iota
	TypeSend
	TypeOpen
	TypeReceive
	TypeChange
	TypeState
)

func (t Type) String() string {
	switch t {
	case TypeSend:
		return "send"
	case TypeOpen:
		return "open"
	case TypeReceive:
		return "receive"
	case TypeChange:
		return "change"
	case TypeState:
		return "state"
	default:
		return "invalid"
	}
}

// Block is the common contract every block variant satisfies. Open and
// state blocks may carry a non-zero Source (the cross-chain reference for a
// receive); send/change blocks do not.
type Block interface {
	Type() Type
	Hash() Hash
	Previous() Hash
	Root() Root
	QualifiedRoot() QualifiedRoot
	Source() Hash
	// Link returns the state block's link field (epoch sentinel, send
	// destination, or receive source depending on subtype). Non-state
	// blocks return the zero hash.
	Link() Hash
	Representative() Account
	Balance() Balance
	Signature() Signature
	Work() uint64
	// Account returns the chain-owner hint carried on the block when known
	// without consulting the ledger (state and legacy open blocks carry it;
	// legacy send/receive/change blocks don't and return the zero
	// account).
	Account() Account
}

// Balance is a nonnegative account balance, raw units.
type Balance [16]byte

// base holds the fields common to every variant; each concrete type embeds
// it and overrides what differs.
type base struct {
	previous  Hash
	signature Signature
	work      uint64
}

func (b base) Previous() Hash        { return b.previous }
func (b base) Signature() Signature  { return b.signature }
func (b base) Work() uint64          { return b.work }

// StateBlock is the generic, universal block format: every field explicit,
// used for all new chain activity including epoch upgrades.
type StateBlock struct {
	base
	account        Account
	representative Account
	balance        Balance
	link           Hash
	hash           Hash
}

// NewStateBlock constructs a state block and computes its hash.
func NewStateBlock(account Account, previous Hash, representative Account, balance Balance, link Hash, sig Signature, work uint64) *StateBlock {
	b := &StateBlock{
		base:           base{previous: previous, signature: sig, work: work},
		account:        account,
		representative: representative,
		balance:        balance,
		link:           link,
	}
	b.hash = HashBlake2b(account[:], previous[:], representative[:], balance[:], link[:])
	return b
}

func (b *StateBlock) Type() Type              { return TypeState }
func (b *StateBlock) Hash() Hash              { return b.hash }
func (b *StateBlock) Root() Root {
	if b.previous.IsZero() {
		return Root(b.account)
	}
	return b.previous
}
func (b *StateBlock) QualifiedRoot() QualifiedRoot {
	return QualifiedRoot{Root: Root(b.account), Previous: b.previous}
}
func (b *StateBlock) Source() Hash {
	// By convention only receive-subtype state blocks (previous != 0,
	// link refers to a pending send) carry a meaningful source; callers
	// that need the subtype consult the ledger, which knows whether link
	// resolves to a pending send. Here we surface link verbatim and let
	// the ledger decide how to interpret it — this mirrors the spec's
	// treatment of "source" as ledger-resolved for state blocks.
	return b.link
}
func (b *StateBlock) Link() Hash                 { return b.link }
func (b *StateBlock) Representative() Account    { return b.representative }
func (b *StateBlock) Balance() Balance           { return b.balance }
func (b *StateBlock) Account() Account           { return b.account }

// OpenBlock is the legacy first block of an account chain.
type OpenBlock struct {
	base
	source         Hash
	representative Account
	account        Account
	hash           Hash
}

func NewOpenBlock(source Hash, representative, account Account, sig Signature, work uint64) *OpenBlock {
	b := &OpenBlock{
		base:           base{work: work, signature: sig},
		source:         source,
		representative: representative,
		account:        account,
	}
	b.hash = HashBlake2b(source[:], representative[:], account[:])
	return b
}

func (b *OpenBlock) Type() Type           { return TypeOpen }
func (b *OpenBlock) Hash() Hash           { return b.hash }
func (b *OpenBlock) Root() Root           { return Root(b.account) }
func (b *OpenBlock) QualifiedRoot() QualifiedRoot {
	return QualifiedRoot{Root: Root(b.account), Previous: Hash{}}
}
func (b *OpenBlock) Source() Hash              { return b.source }
func (b *OpenBlock) Link() Hash                { return Hash{} }
func (b *OpenBlock) Representative() Account   { return b.representative }
func (b *OpenBlock) Balance() Balance          { return Balance{} }
func (b *OpenBlock) Account() Account          { return b.account }

// SendBlock debits an account chain toward a destination account.
type SendBlock struct {
	base
	destination Account
	balance     Balance
	hash        Hash
}

func NewSendBlock(previous Hash, destination Account, balance Balance, sig Signature, work uint64) *SendBlock {
	b := &SendBlock{
		base:        base{previous: previous, work: work, signature: sig},
		destination: destination,
		balance:     balance,
	}
	b.hash = HashBlake2b(previous[:], destination[:], balance[:])
	return b
}

func (b *SendBlock) Type() Type        { return TypeSend }
func (b *SendBlock) Hash() Hash        { return b.hash }
func (b *SendBlock) Root() Root        { return b.previous }
func (b *SendBlock) QualifiedRoot() QualifiedRoot {
	return QualifiedRoot{Root: b.previous, Previous: b.previous}
}
func (b *SendBlock) Source() Hash            { return Hash{} }
func (b *SendBlock) Link() Hash              { return Hash{} }
func (b *SendBlock) Representative() Account { return Account{} }
func (b *SendBlock) Balance() Balance        { return b.balance }
func (b *SendBlock) Account() Account        { return Account{} }

// ReceiveBlock credits an account chain from a pending send.
type ReceiveBlock struct {
	base
	source Hash
	hash   Hash
}

func NewReceiveBlock(previous, source Hash, sig Signature, work uint64) *ReceiveBlock {
	b := &ReceiveBlock{
		base:   base{previous: previous, work: work, signature: sig},
		source: source,
	}
	b.hash = HashBlake2b(previous[:], source[:])
	return b
}

func (b *ReceiveBlock) Type() Type     { return TypeReceive }
func (b *ReceiveBlock) Hash() Hash     { return b.hash }
func (b *ReceiveBlock) Root() Root     { return b.previous }
func (b *ReceiveBlock) QualifiedRoot() QualifiedRoot {
	return QualifiedRoot{Root: b.previous, Previous: b.previous}
}
func (b *ReceiveBlock) Source() Hash              { return b.source }
func (b *ReceiveBlock) Link() Hash                { return Hash{} }
func (b *ReceiveBlock) Representative() Account   { return Account{} }
func (b *ReceiveBlock) Balance() Balance          { return Balance{} }
func (b *ReceiveBlock) Account() Account          { return Account{} }

// ChangeBlock updates an account chain's chosen representative.
type ChangeBlock struct {
	base
	representative Account
	hash           Hash
}

func NewChangeBlock(previous Hash, representative Account, sig Signature, work uint64) *ChangeBlock {
	b := &ChangeBlock{
		base:           base{previous: previous, work: work, signature: sig},
		representative: representative,
	}
	b.hash = HashBlake2b(previous[:], representative[:])
	return b
}

func (b *ChangeBlock) Type() Type     { return TypeChange }
func (b *ChangeBlock) Hash() Hash     { return b.hash }
func (b *ChangeBlock) Root() Root     { return b.previous }
func (b *ChangeBlock) QualifiedRoot() QualifiedRoot {
	return QualifiedRoot{Root: b.previous, Previous: b.previous}
}
func (b *ChangeBlock) Source() Hash              { return Hash{} }
func (b *ChangeBlock) Link() Hash                { return Hash{} }
func (b *ChangeBlock) Representative() Account   { return b.representative }
func (b *ChangeBlock) Balance() Balance          { return Balance{} }
func (b *ChangeBlock) Account() Account          { return Account{} }
