package sigverify

import (
	"crypto/ed25519"
	"sync"
	"testing"

	"ledgercore/block"
)

func keypair(t *testing.T) (block.Account, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var account block.Account
	copy(account[:], pub)
	return account, priv
}

func sign(priv ed25519.PrivateKey, h block.Hash) block.Signature {
	var sig block.Signature
	copy(sig[:], ed25519.Sign(priv, h[:]))
	return sig
}

func TestVerifierValidSignature(t *testing.T) {
	account, priv := keypair(t)
	blk := block.NewStateBlock(account, block.Hash{}, account, block.Balance{}, block.Hash{}, block.Signature{}, 0)
	sig := sign(priv, blk.Hash())
	signed := block.NewStateBlock(account, block.Hash{}, account, block.Balance{}, block.Hash{}, sig, 0)

	var mu sync.Mutex
	var got []Verdict
	done := make(chan struct{})
	v := New(1, nil, func(vd Verdict) {
		mu.Lock()
		got = append(got, vd)
		mu.Unlock()
		done <- struct{}{}
	})
	defer v.Stop()

	v.Verify(signed, account)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Verified.String() != "valid" {
		t.Fatalf("got %+v", got)
	}
	if got[0].BadSig {
		t.Fatalf("expected valid signature, got BadSig=true")
	}
}

func TestVerifierBadSignature(t *testing.T) {
	account, _ := keypair(t)
	blk := block.NewStateBlock(account, block.Hash{}, account, block.Balance{}, block.Hash{}, block.Signature{}, 0)

	done := make(chan Verdict, 1)
	v := New(1, nil, func(vd Verdict) { done <- vd })
	defer v.Stop()

	v.Verify(blk, account)
	vd := <-done
	if !vd.BadSig {
		t.Fatalf("expected BadSig=true for zero signature, got %+v", vd)
	}
}

type fakeEpoch struct {
	signer block.Account
	links  map[block.Hash]bool
}

func (f fakeEpoch) IsEpochLink(link block.Hash) bool { return f.links[link] }
func (f fakeEpoch) Signer() block.Account            { return f.signer }

func TestVerifierEpochLink(t *testing.T) {
	authority, authPriv := keypair(t)
	account, _ := keypair(t)
	epochLink := block.Hash{0xE9}

	blk := block.NewStateBlock(account, block.Hash{}, account, block.Balance{}, epochLink, block.Signature{}, 0)
	sig := sign(authPriv, blk.Hash())
	signed := block.NewStateBlock(account, block.Hash{}, account, block.Balance{}, epochLink, sig, 0)

	epoch := fakeEpoch{signer: authority, links: map[block.Hash]bool{epochLink: true}}

	done := make(chan Verdict, 1)
	v := New(1, epoch, func(vd Verdict) { done <- vd })
	defer v.Stop()

	v.Verify(signed, account)
	vd := <-done
	if vd.Verified.String() != "valid_epoch" {
		t.Fatalf("got %+v, want valid_epoch", vd)
	}
}

func TestVerifierFlushWaitsForOutstandingWork(t *testing.T) {
	account, priv := keypair(t)
	release := make(chan struct{})
	var calls int
	v := New(1, nil, func(vd Verdict) {
		<-release
		calls++
	})
	defer v.Stop()

	blk := block.NewStateBlock(account, block.Hash{}, account, block.Balance{}, block.Hash{}, block.Signature{}, 0)
	sig := sign(priv, blk.Hash())
	signed := block.NewStateBlock(account, block.Hash{}, account, block.Balance{}, block.Hash{}, sig, 0)
	v.Verify(signed, account)

	flushed := make(chan struct{})
	go func() {
		v.Flush()
		close(flushed)
	}()

	select {
	case <-flushed:
		t.Fatalf("Flush returned before the in-flight verification's callback ran")
	default:
	}
	close(release)
	<-flushed
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
