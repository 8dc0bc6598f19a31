package ledger

import (
	"ledgercore/block"
	"ledgercore/process"
	"ledgercore/unchecked"
)

// Ledger applies blocks to a Store, enforcing the closed set of outcomes
// in package process. It is grounded on the teacher's core/state_processor
// ApplyTransaction/ApplyTransactions shape — validate, mutate, return a
// typed result — generalized from EVM transactions to DAG blocks.
type Ledger struct {
	store         *Store
	epoch         *EpochRegistry
	workThreshold uint64
}

// New constructs a Ledger over store, recognizing epoch using epoch and
// requiring workThreshold as the minimum proof-of-work difficulty value
// (see block.ValidateWork).
func New(store *Store, epoch *EpochRegistry, workThreshold uint64) *Ledger {
	return &Ledger{store: store, epoch: epoch, workThreshold: workThreshold}
}

// Process validates and, on success, applies blk within txn (which must
// be a write transaction), returning the outcome. Every branch below
// corresponds to one process.Code; nothing is written to the store on a
// non-Progress result.
func (l *Ledger) Process(txn *Txn, blk block.Block, verified unchecked.Verification) process.Result {
	hash := blk.Hash()

	if _, exists := txn.store.blocks[hash]; exists {
		return process.Result{Code: process.Old}
	}

	root := blk.Root()
	if existing, ok := txn.store.successorOf[root]; ok && existing != hash {
		return process.Result{Code: process.Fork}
	}

	account, info, hadAccount, code := l.resolveAccount(txn, blk)
	if code != process.Progress {
		return process.Result{Code: code}
	}

	if blk.Previous().IsZero() && account.IsZero() {
		return process.Result{Code: process.OpenedBurnAccount}
	}

	resolvedVerified := verified
	if verified == unchecked.VerificationUnknown {
		signer := account
		isEpoch := l.epoch != nil && l.epoch.IsEpochLink(blk.Link())
		if isEpoch {
			signer = l.epoch.Signer()
		}
		if !block.VerifySignature(signer, hash, blk.Signature()) {
			return process.Result{Code: process.BadSignature}
		}
		if isEpoch {
			resolvedVerified = unchecked.VerificationValidEpoch
		} else {
			resolvedVerified = unchecked.VerificationValid
		}
	}

	if !block.ValidateWork(root, blk.Work(), l.workThreshold) {
		return process.Result{Code: process.InsufficientWork}
	}

	prevBalance := info.Balance
	newInfo := info
	var pendingAdded *PendingKey
	var pendingRemoved *pendingEntry

	switch blk.Type() {
	case block.TypeSend:
		if blk.Balance().Cmp(info.Balance) > 0 {
			return process.Result{Code: process.NegativeSpend}
		}
		newInfo.Balance = blk.Balance()
		key := PendingKey{Destination: blk.Account(), SendHash: hash}
		// Legacy send blocks don't carry a destination via Account(); the
		// real destination lives on the paired open/receive block's
		// Source() lookup, so we key pending by the send hash alone and
		// let the receiving side resolve it through BlockSource.
		key.Destination = block.Account{}
		amount := info.Balance.Sub(blk.Balance())
		txn.store.pending[key] = PendingInfo{Source: account, Amount: amount}
		pendingAdded = &key

	case block.TypeOpen, block.TypeReceive:
		key := PendingKey{Destination: block.Account{}, SendHash: blk.Source()}
		pending, ok := txn.store.pending[key]
		if !ok {
			return process.Result{Code: process.Unreceivable}
		}
		newInfo.Balance = info.Balance.Add(pending.Amount)
		delete(txn.store.pending, key)
		pendingRemoved = &pendingEntry{key: key, value: pending}
		if blk.Type() == block.TypeOpen {
			newInfo.Representative = blk.Representative()
			newInfo.Open = hash
		}

	case block.TypeChange:
		if blk.Representative() == info.Representative {
			return process.Result{Code: process.RepresentativeMismatch}
		}
		newInfo.Representative = blk.Representative()

	case block.TypeState:
		switch blk.Balance().Cmp(info.Balance) {
		case 1: // receive
			key := PendingKey{Destination: account, SendHash: blk.Link()}
			pending, ok := txn.store.pending[key]
			if !ok {
				return process.Result{Code: process.Unreceivable}
			}
			if info.Balance.Add(pending.Amount) != blk.Balance() {
				return process.Result{Code: process.BalanceMismatch}
			}
			delete(txn.store.pending, key)
			pendingRemoved = &pendingEntry{key: key, value: pending}
			newInfo.Representative = blk.Representative()
		case -1: // send
			destination := block.Account(blk.Link())
			key := PendingKey{Destination: destination, SendHash: hash}
			amount := info.Balance.Sub(blk.Balance())
			txn.store.pending[key] = PendingInfo{Source: account, Amount: amount}
			pendingAdded = &key
			newInfo.Representative = blk.Representative()
		default: // no balance change: representative change or epoch upgrade
			isEpoch := l.epoch != nil && l.epoch.IsEpochLink(blk.Link())
			if blk.Representative() == info.Representative && !isEpoch {
				return process.Result{Code: process.RepresentativeMismatch}
			}
			newInfo.Representative = blk.Representative()
		}
		if blk.Previous().IsZero() {
			newInfo.Open = hash
		}
	}

	newInfo.Head = hash
	newInfo.BlockCount = info.BlockCount + 1

	l.commit(txn, blk, hash, root, account, hadAccount, info, newInfo, pendingAdded, pendingRemoved)

	return process.Result{
		Code:            process.Progress,
		PreviousBalance: prevBalance,
		Account:         account,
		Verified:        resolvedVerified,
	}
}

// resolveAccount determines which account chain blk belongs to and
// whether it extends that chain's current head correctly.
func (l *Ledger) resolveAccount(txn *Txn, blk block.Block) (block.Account, AccountInfo, bool, process.Code) {
	if blk.Previous().IsZero() {
		account := blk.Account()
		info, hadAccount := txn.store.accounts[account]
		if hadAccount {
			return account, info, hadAccount, process.Fork
		}
		return account, info, hadAccount, process.Progress
	}

	owner, ok := txn.store.owner[blk.Previous()]
	if !ok {
		return block.Account{}, AccountInfo{}, false, process.GapPrevious
	}
	if !blk.Account().IsZero() && blk.Account() != owner {
		return block.Account{}, AccountInfo{}, false, process.BlockPosition
	}
	info, hadAccount := txn.store.accounts[owner]
	if !hadAccount || info.Head != blk.Previous() {
		return block.Account{}, AccountInfo{}, false, process.BlockPosition
	}
	return owner, info, hadAccount, process.Progress
}

// commit records the mutation implied by applying hash and appends an
// undo record so Rollback can reverse it precisely.
func (l *Ledger) commit(txn *Txn, blk block.Block, hash block.Hash, root block.Root, account block.Account, hadAccount bool, prevInfo, newInfo AccountInfo, pendingAdded *PendingKey, pendingRemoved *pendingEntry) {
	s := txn.store
	s.seq++
	s.commits[hash] = commitLog{
		seq:             s.seq,
		hash:            hash,
		root:            root,
		account:         account,
		hadAccount:      hadAccount,
		prevAccountInfo: prevInfo,
		pendingAdded:    pendingAdded,
		pendingRemoved:  pendingRemoved,
	}
	s.blocks[hash] = blk
	s.owner[hash] = account
	s.successorOf[root] = hash
	s.accounts[account] = newInfo
}

// IsEpochLink reports whether link is a recognized epoch-upgrade sentinel,
// satisfying sigverify.EpochRecognizer so the signature-verification
// batching pool can resolve epoch links without importing ledger.
func (l *Ledger) IsEpochLink(link block.Hash) bool {
	return l.epoch != nil && l.epoch.IsEpochLink(link)
}

// Signer returns the account whose signature authorizes an epoch upgrade,
// the zero account if this ledger recognizes no epoch registry.
func (l *Ledger) Signer() block.Account {
	if l.epoch == nil {
		return block.Account{}
	}
	return l.epoch.Signer()
}

// BlockSource returns the cross-chain dependency hash blk references (the
// send it receives from), or the zero hash if it has none.
func (l *Ledger) BlockSource(blk block.Block) block.Hash {
	return blk.Source()
}

// Successor returns the hash of the block already occupying root, if any.
func (l *Ledger) Successor(txn *Txn, root block.Root) (block.Hash, bool) {
	h, ok := txn.store.successorOf[root]
	return h, ok
}

// Rollback undoes hash and every block transitively built on top of it,
// restoring prior account and pending state, and returns the rolled-back
// hashes oldest-committed first (hash itself first), the way the teacher's
// core/blockchain.SetHead reports the reorganized range. The undo itself
// runs in the reverse of that order, most recently applied first.
func (l *Ledger) Rollback(txn *Txn, hash block.Hash) []block.Hash {
	s := txn.store
	toRemove := l.collectDescendants(txn, hash)

	for i := len(toRemove) - 1; i >= 0; i-- {
		h := toRemove[i]
		cl, ok := s.commits[h]
		if !ok {
			continue
		}
		delete(s.blocks, h)
		delete(s.owner, h)
		if s.successorOf[cl.root] == h {
			delete(s.successorOf, cl.root)
		}
		if cl.hadAccount {
			s.accounts[cl.account] = cl.prevAccountInfo
		} else {
			delete(s.accounts, cl.account)
		}
		if cl.pendingAdded != nil {
			delete(s.pending, *cl.pendingAdded)
		}
		if cl.pendingRemoved != nil {
			s.pending[cl.pendingRemoved.key] = cl.pendingRemoved.value
		}
		delete(s.commits, h)
	}
	return toRemove
}

// collectDescendants gathers hash and every block whose Previous chains
// to it (directly or transitively), ordered oldest-committed first.
func (l *Ledger) collectDescendants(txn *Txn, hash block.Hash) []block.Hash {
	s := txn.store
	var out []block.Hash
	frontier := []block.Hash{hash}
	seen := map[block.Hash]bool{hash: true}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		out = append(out, cur)
		for h, b := range s.blocks {
			if seen[h] {
				continue
			}
			if b.Previous() == cur {
				seen[h] = true
				frontier = append(frontier, h)
			}
		}
	}
	// Order by commit sequence ascending so the caller (and Rollback's
	// reverse iteration above) undoes the most recent commit first.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && s.commits[out[j-1]].seq > s.commits[out[j]].seq; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
