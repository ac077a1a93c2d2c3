package identity

import "testing"

func TestBackup_Roundtrip(t *testing.T) {
	id, err := FromMnemonic(testMnemonic)
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}

	data, err := id.ExportEncrypted([]byte("correct horse battery"))
	if err != nil {
		t.Fatalf("ExportEncrypted: %v", err)
	}

	restored, err := ImportEncrypted(data, []byte("correct horse battery"))
	if err != nil {
		t.Fatalf("ImportEncrypted: %v", err)
	}
	if restored.NodeID != id.NodeID {
		t.Errorf("node ID = %s, want %s", restored.NodeID, id.NodeID)
	}
	if restored.WalletAddress != id.WalletAddress {
		t.Errorf("wallet = %s, want %s", restored.WalletAddress, id.WalletAddress)
	}
	if restored.Mnemonic != id.Mnemonic {
		t.Error("mnemonic not recovered")
	}
}

func TestBackup_WrongPassphrase(t *testing.T) {
	id, err := FromMnemonic(testMnemonic)
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}

	data, err := id.ExportEncrypted([]byte("right"))
	if err != nil {
		t.Fatalf("ExportEncrypted: %v", err)
	}

	if _, err := ImportEncrypted(data, []byte("wrong")); err == nil {
		t.Fatal("decryption succeeded with wrong passphrase")
	}
}

func TestBackup_EmptyPassphrase(t *testing.T) {
	id, err := FromMnemonic(testMnemonic)
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}
	if _, err := id.ExportEncrypted(nil); err == nil {
		t.Fatal("export succeeded with empty passphrase")
	}
}

func TestBackup_TruncatedData(t *testing.T) {
	if _, err := ImportEncrypted([]byte("too short"), []byte("pass")); err == nil {
		t.Fatal("import succeeded on truncated backup")
	}
}

func TestBackup_TamperedCiphertext(t *testing.T) {
	id, err := FromMnemonic(testMnemonic)
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}

	data, err := id.ExportEncrypted([]byte("pass"))
	if err != nil {
		t.Fatalf("ExportEncrypted: %v", err)
	}
	data[len(data)-1] ^= 0xff

	if _, err := ImportEncrypted(data, []byte("pass")); err == nil {
		t.Fatal("import succeeded on tampered ciphertext")
	}
}
