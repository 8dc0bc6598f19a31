package ledger

import (
	"crypto/ed25519"
	"testing"

	"ledgercore/block"
	"ledgercore/process"
	"ledgercore/unchecked"
)

// testAccount produces a fresh ed25519 keypair and returns both the
// block.Account view of the public key and a sign function.
func testAccount(t *testing.T) (block.Account, func(h block.Hash) block.Signature) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var account block.Account
	copy(account[:], pub)
	sign := func(h block.Hash) block.Signature {
		var sig block.Signature
		copy(sig[:], ed25519.Sign(priv, h[:]))
		return sig
	}
	return account, sign
}

func newTestLedger() *Ledger {
	store := NewStore(1 << 16)
	return New(store, nil, 0) // workThreshold 0: any nonce validates
}

func openAccount(t *testing.T, l *Ledger, txn *Txn, balance block.Balance) (block.Account, func(h block.Hash) block.Signature, *block.StateBlock) {
	t.Helper()
	account, sign := testAccount(t)
	rep := account
	// The ledger only credits a balance increase against a pending send, so
	// seed one for the new account to receive as its opening balance.
	funding := block.Hash(account)
	txn.store.pending[PendingKey{Destination: account, SendHash: funding}] = PendingInfo{Amount: balance}
	blk := block.NewStateBlock(account, block.Hash{}, rep, balance, funding, block.Signature{}, 1)
	blk = block.NewStateBlock(account, block.Hash{}, rep, balance, funding, sign(blk.Hash()), 1)
	result := l.Process(txn, blk, unchecked.VerificationUnknown)
	if result.Code != process.Progress {
		t.Fatalf("open block: got %v, want progress", result.Code)
	}
	return account, sign, blk
}

func TestProcessOpenIsProgress(t *testing.T) {
	l := newTestLedger()
	txn := l.store.Begin(true)
	defer txn.End()

	var balance block.Balance
	balance[15] = 100
	openAccount(t, l, txn, balance)
}

func TestProcessDuplicateIsOld(t *testing.T) {
	l := newTestLedger()
	txn := l.store.Begin(true)
	defer txn.End()

	var balance block.Balance
	balance[15] = 100
	_, _, blk := openAccount(t, l, txn, balance)

	result := l.Process(txn, blk, unchecked.VerificationUnknown)
	if result.Code != process.Old {
		t.Fatalf("got %v, want old", result.Code)
	}
}

func TestProcessGapPrevious(t *testing.T) {
	l := newTestLedger()
	txn := l.store.Begin(true)
	defer txn.End()

	account, sign := testAccount(t)
	missingPrevious := block.Hash{0xAB}
	var balance block.Balance
	balance[15] = 50
	blk := block.NewStateBlock(account, missingPrevious, account, balance, block.Hash{}, block.Signature{}, 1)
	blk = block.NewStateBlock(account, missingPrevious, account, balance, block.Hash{}, sign(blk.Hash()), 1)

	result := l.Process(txn, blk, unchecked.VerificationUnknown)
	if result.Code != process.GapPrevious {
		t.Fatalf("got %v, want gap_previous", result.Code)
	}
}

func TestProcessForkOnSecondBlockAtSameRoot(t *testing.T) {
	l := newTestLedger()
	txn := l.store.Begin(true)
	defer txn.End()

	var balance block.Balance
	balance[15] = 100
	account, sign, open := openAccount(t, l, txn, balance)

	var sentBalance block.Balance
	sentBalance[15] = 90
	send1 := block.NewStateBlock(account, open.Hash(), account, sentBalance, block.Hash{}, block.Signature{}, 1)
	send1 = block.NewStateBlock(account, open.Hash(), account, sentBalance, block.Hash{}, sign(send1.Hash()), 1)
	if result := l.Process(txn, send1, unchecked.VerificationUnknown); result.Code != process.Progress {
		t.Fatalf("first send: got %v, want progress", result.Code)
	}

	var otherBalance block.Balance
	otherBalance[15] = 80
	send2 := block.NewStateBlock(account, open.Hash(), account, otherBalance, block.Hash{}, block.Signature{}, 1)
	send2 = block.NewStateBlock(account, open.Hash(), account, otherBalance, block.Hash{}, sign(send2.Hash()), 1)
	result := l.Process(txn, send2, unchecked.VerificationUnknown)
	if result.Code != process.Fork {
		t.Fatalf("conflicting second block at the same root: got %v, want fork", result.Code)
	}
}

func TestProcessNegativeSpendRejected(t *testing.T) {
	// NegativeSpend is specific to the legacy send-block format, where the
	// block explicitly claims a post-send balance: a legacy SendBlock
	// claiming MORE than the account held is malformed regardless of any
	// pending entry, unlike a state block's balance-increase path (which
	// instead resolves through the pending/unreceivable check).
	l := newTestLedger()
	txn := l.store.Begin(true)
	defer txn.End()

	var balance block.Balance
	balance[15] = 10
	_, sign, open := openAccount(t, l, txn, balance)

	destination, _ := testAccount(t)
	var overspend block.Balance
	overspend[15] = 20 // more than the account has
	blk := block.NewSendBlock(open.Hash(), destination, overspend, block.Signature{}, 1)
	blk = block.NewSendBlock(open.Hash(), destination, overspend, sign(blk.Hash()), 1)
	result := l.Process(txn, blk, unchecked.VerificationUnknown)
	if result.Code != process.NegativeSpend {
		t.Fatalf("got %v, want negative_spend", result.Code)
	}
}

func TestProcessBadSignatureRejected(t *testing.T) {
	l := newTestLedger()
	txn := l.store.Begin(true)
	defer txn.End()

	account, _ := testAccount(t)
	var balance block.Balance
	balance[15] = 5
	blk := block.NewStateBlock(account, block.Hash{}, account, balance, block.Hash{}, block.Signature{}, 1) // zero signature, never valid
	result := l.Process(txn, blk, unchecked.VerificationUnknown)
	if result.Code != process.BadSignature {
		t.Fatalf("got %v, want bad_signature", result.Code)
	}
}

func TestReceiveConsumesPendingAndUnreceivableWithoutIt(t *testing.T) {
	l := newTestLedger()
	txn := l.store.Begin(true)
	defer txn.End()

	var senderBalance block.Balance
	senderBalance[15] = 100
	sender, senderSign, senderOpen := openAccount(t, l, txn, senderBalance)

	receiver, receiverSign := testAccount(t)

	var afterSend block.Balance
	afterSend[15] = 70 // sends 30 to receiver
	send := block.NewStateBlock(sender, senderOpen.Hash(), sender, afterSend, block.Hash(receiver), block.Signature{}, 1)
	send = block.NewStateBlock(sender, senderOpen.Hash(), sender, afterSend, block.Hash(receiver), senderSign(send.Hash()), 1)
	if result := l.Process(txn, send, unchecked.VerificationUnknown); result.Code != process.Progress {
		t.Fatalf("send: got %v, want progress", result.Code)
	}

	var receiverBalance block.Balance
	receiverBalance[15] = 30
	receive := block.NewStateBlock(receiver, block.Hash{}, receiver, receiverBalance, send.Hash(), block.Signature{}, 1)
	receive = block.NewStateBlock(receiver, block.Hash{}, receiver, receiverBalance, send.Hash(), receiverSign(receive.Hash()), 1)
	result := l.Process(txn, receive, unchecked.VerificationUnknown)
	if result.Code != process.Progress {
		t.Fatalf("receive: got %v, want progress", result.Code)
	}

	// A second, unrelated account trying to claim the same already-consumed
	// pending send hash (by fabricating a link to it without a matching
	// pending entry) must be rejected as unreceivable.
	other, otherSign := testAccount(t)
	blk := block.NewStateBlock(other, block.Hash{}, other, receiverBalance, send.Hash(), block.Signature{}, 1)
	blk = block.NewStateBlock(other, block.Hash{}, other, receiverBalance, send.Hash(), otherSign(blk.Hash()), 1)
	result = l.Process(txn, blk, unchecked.VerificationUnknown)
	if result.Code != process.Unreceivable {
		t.Fatalf("got %v, want unreceivable", result.Code)
	}
}

func TestRollbackUndoesAccountState(t *testing.T) {
	l := newTestLedger()
	txn := l.store.Begin(true)
	defer txn.End()

	var balance block.Balance
	balance[15] = 100
	account, sign, open := openAccount(t, l, txn, balance)

	var sentBalance block.Balance
	sentBalance[15] = 60
	send := block.NewStateBlock(account, open.Hash(), account, sentBalance, block.Hash{}, block.Signature{}, 1)
	send = block.NewStateBlock(account, open.Hash(), account, sentBalance, block.Hash{}, sign(send.Hash()), 1)
	if result := l.Process(txn, send, unchecked.VerificationUnknown); result.Code != process.Progress {
		t.Fatalf("send: got %v, want progress", result.Code)
	}

	rolledBack := l.Rollback(txn, send.Hash())
	if len(rolledBack) != 1 || rolledBack[0] != send.Hash() {
		t.Fatalf("Rollback returned %v, want [send hash]", rolledBack)
	}

	info, ok := txn.AccountInfo(account)
	if !ok {
		t.Fatalf("account missing after rollback")
	}
	if info.Head != open.Hash() {
		t.Fatalf("account head after rollback = %v, want open block hash", info.Head)
	}
	if info.Balance.Cmp(balance) != 0 {
		t.Fatalf("balance after rollback not restored to pre-send value")
	}

	// The send can now be re-applied cleanly since it was fully undone.
	result := l.Process(txn, send, unchecked.VerificationUnknown)
	if result.Code != process.Progress {
		t.Fatalf("re-applying rolled-back send: got %v, want progress", result.Code)
	}
}
