package service

import (
	"context"
	"errors"
	"strconv"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tron-wallet-core/internal/chain"
	"tron-wallet-core/internal/chain/tron"
	"tron-wallet-core/internal/model"
	"tron-wallet-core/pkg/errno"
	"tron-wallet-core/pkg/keystore"
	"tron-wallet-core/pkg/logger"
)

const (
	depositSecretPrefix  = "addr:"
	platformSecretPrefix = "platform:"
)

// KeyService 负责充值地址的生成与私钥托管。
// 私钥不落库：经 scrypt+AES-GCM 包裹后写入 keystore，
// 数据库里只存 secretId 引用。
type KeyService struct {
	db        *gorm.DB
	store     keystore.Store
	wrapper   *keystore.Wrapper
	chainCode string
}

func NewKeyService(db *gorm.DB, store keystore.Store, wrapper *keystore.Wrapper, chainCode string) *KeyService {
	return &KeyService{db: db, store: store, wrapper: wrapper, chainCode: chainCode}
}

// CreateDepositAddress 为用户生成一个新的充值地址。
// 同一用户可以持有多个地址，每个地址一把独立随机私钥。
func (s *KeyService) CreateDepositAddress(ctx context.Context, userID uint64) (*model.DepositAddress, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	address := tron.AddressFromPubKey(&key.PublicKey)
	secretID := depositSecretPrefix + address

	payload, err := s.wrapper.WrapKey(address, strconv.FormatUint(userID, 10), ethcrypto.FromECDSA(key))
	if err != nil {
		return nil, err
	}
	// 先写 keystore 再落库：库里出现的地址必然能取回私钥
	if err := s.store.Put(ctx, secretID, payload); err != nil {
		return nil, err
	}

	record := &model.DepositAddress{
		UserID:   userID,
		Chain:    s.chainCode,
		Address:  address,
		SecretID: secretID,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	logger.Info("生成充值地址", zap.Uint64("user_id", userID), zap.String("address", address))
	return record, nil
}

// SigningContext 取回某个充值地址的签名上下文（owner 权限）。
func (s *KeyService) SigningContext(ctx context.Context, address string) (chain.SignContext, error) {
	var record model.DepositAddress
	err := s.db.WithContext(ctx).
		Where("chain = ? AND address = ?", s.chainCode, address).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chain.SignContext{}, errno.ErrWalletNotFound
	}
	if err != nil {
		return chain.SignContext{}, err
	}

	payload, err := s.store.Get(ctx, record.SecretID)
	if err != nil {
		return chain.SignContext{}, err
	}
	raw, err := s.wrapper.UnwrapKey(address, strconv.FormatUint(record.UserID, 10), payload)
	if err != nil {
		return chain.SignContext{}, err
	}
	key, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return chain.SignContext{}, err
	}
	return chain.SignContext{PrivateKey: key, OwnerAddress: address}, nil
}

// ImportPlatformKey 托管平台钱包（热钱包/手续费钱包）的私钥，
// 由运维通过 CLI 导入一次。
func (s *KeyService) ImportPlatformKey(ctx context.Context, rawKey []byte) (string, error) {
	key, err := ethcrypto.ToECDSA(rawKey)
	if err != nil {
		return "", err
	}
	address := tron.AddressFromPubKey(&key.PublicKey)
	payload, err := s.wrapper.WrapKey(address, "", rawKey)
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, platformSecretPrefix+address, payload); err != nil {
		return "", err
	}
	return address, nil
}

// PlatformSigningContext 取回平台钱包私钥。
// ownerAddress 允许与签名地址不同：多签场景下运营钱包
// 以 active key 身份替资源钱包签 delegate 交易。
func (s *KeyService) PlatformSigningContext(ctx context.Context, keyAddress, ownerAddress string, permissionID int32) (chain.SignContext, error) {
	payload, err := s.store.Get(ctx, platformSecretPrefix+keyAddress)
	if err != nil {
		return chain.SignContext{}, err
	}
	raw, err := s.wrapper.UnwrapKey(keyAddress, "", payload)
	if err != nil {
		return chain.SignContext{}, err
	}
	key, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return chain.SignContext{}, err
	}
	if ownerAddress == "" {
		ownerAddress = keyAddress
	}
	return chain.SignContext{PrivateKey: key, OwnerAddress: ownerAddress, PermissionID: permissionID}, nil
}
