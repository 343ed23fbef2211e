package keystore

import (
	"context"
	"errors"
	"testing"
)

func TestWrapUnwrapKey(t *testing.T) {
	w := NewWrapper("system-secret")
	privKey := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	payload, err := w.WrapKey("addr-1", "user-1", privKey)
	if err != nil {
		t.Fatalf("WrapKey failed: %v", err)
	}

	// 1. 正确输入解封
	got, err := w.UnwrapKey("addr-1", "user-1", payload)
	if err != nil {
		t.Fatalf("UnwrapKey failed: %v", err)
	}
	if string(got) != string(privKey) {
		t.Errorf("plaintext mismatch")
	}

	// 2. 地址不匹配 → 类型化错误，而不是乱码明文
	_, err = w.UnwrapKey("addr-2", "user-1", payload)
	if !errors.Is(err, ErrKeyCheckMismatch) {
		t.Errorf("expected ErrKeyCheckMismatch, got %v", err)
	}

	// 3. 系统密钥不匹配
	w2 := NewWrapper("other-secret")
	_, err = w2.UnwrapKey("addr-1", "user-1", payload)
	if !errors.Is(err, ErrKeyCheckMismatch) {
		t.Errorf("expected ErrKeyCheckMismatch, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	if !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}

	if err := s.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	data, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "v" {
		t.Errorf("payload mismatch")
	}
}
