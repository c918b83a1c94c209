package signature_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/puzzlekit/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

const pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

// =============================================================================

func Test_K1(t *testing.T) {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	var delegated, coinID, puzzleHash [32]byte
	delegated[0], coinID[0], puzzleHash[0] = 1, 2, 3

	msg := signature.Message(delegated, coinID)

	sig, err := signature.SignK1(msg, pk)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	pub := signature.K1PublicKey(pk)
	if len(pub) != signature.PublicKeyLength {
		t.Fatalf("Should get a compressed public key, got %d bytes.", len(pub))
	}

	if err := signature.VerifyK1(pub, msg, sig); err != nil {
		t.Fatalf("Should be able to verify the signature: %s", err)
	}

	other := signature.Message(delegated, puzzleHash)
	if err := signature.VerifyK1(pub, other, sig); !errors.Is(err, signature.ErrInvalidSignature) {
		t.Fatalf("Should not verify a signature bound to another coin: %v", err)
	}

	str := signature.Encode(sig)
	back, err := signature.Decode(str)
	if err != nil || string(back) != string(sig) {
		t.Logf("got: %x", back)
		t.Logf("exp: %x", sig)
		t.Fatalf("Should get back the same signature from hex.")
	}
}

func Test_R1(t *testing.T) {
	pk, err := signature.GenerateR1()
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	var delegated, coinID [32]byte
	delegated[0], coinID[0] = 4, 5

	msg := signature.Message(delegated, coinID)

	sig, err := signature.SignR1(msg, pk)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	pub := signature.R1PublicKey(pk)
	if err := signature.VerifyR1(pub, msg, sig); err != nil {
		t.Fatalf("Should be able to verify the signature: %s", err)
	}

	sig[10] ^= 0xff
	if err := signature.VerifyR1(pub, msg, sig); !errors.Is(err, signature.ErrInvalidSignature) {
		t.Fatalf("Should not verify a tampered signature: %v", err)
	}
}

func Test_Passkey(t *testing.T) {
	pk, err := signature.GenerateR1()
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	var delegated, coinID [32]byte
	delegated[0], coinID[0] = 6, 7

	challenge := signature.PasskeyChallenge(signature.Message(delegated, coinID))
	authData := []byte{0x49, 0x96, 0x0d, 0xe5}
	client := []byte(`{"type":"webauthn.get","challenge":"` + challenge + `","origin":"http://localhost:3000","crossOrigin":false}`)

	msg := signature.PasskeyMessage(authData, client)
	sig, err := signature.SignR1(msg, pk)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	if err := signature.VerifyR1(signature.R1PublicKey(pk), msg, sig); err != nil {
		t.Fatalf("Should be able to verify the assertion: %s", err)
	}

	if signature.PasskeyMessage(authData, client[1:]) == msg {
		t.Fatalf("Should commit to the client data.")
	}
}
