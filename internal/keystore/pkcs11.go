package keystore

import (
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"
)

// PKCS11KeyStore is an IdentityKeyStore backed by a PKCS#11 token, wiring
// the teacher's declared-but-unused github.com/miekg/pkcs11 dependency: an
// OwnIdentity's insertKey is exactly the kind of long-lived local secret a
// hardware token is meant to protect. Keys are looked up by CKA_LABEL set
// to the identity ID.
type PKCS11KeyStore struct {
	ctx     *pkcs11.Ctx
	session pkcs11.SessionHandle

	mu      sync.Mutex
	private map[string]pkcs11.ObjectHandle
	public  map[string]pkcs11.ObjectHandle
}

// OpenPKCS11KeyStore loads the PKCS#11 module at modulePath, opens a
// read-write session on the first available slot, and logs in with pin.
func OpenPKCS11KeyStore(modulePath, pin string) (*PKCS11KeyStore, error) {
	ctx := pkcs11.New(modulePath)
	if ctx == nil {
		return nil, fmt.Errorf("keystore: failed to load pkcs11 module %q", modulePath)
	}
	if err := ctx.Initialize(); err != nil {
		return nil, fmt.Errorf("keystore: pkcs11 initialize: %w", err)
	}

	slots, err := ctx.GetSlotList(true)
	if err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("keystore: pkcs11 get slot list: %w", err)
	}
	if len(slots) == 0 {
		ctx.Destroy()
		return nil, fmt.Errorf("keystore: no pkcs11 slots with a token present")
	}

	session, err := ctx.OpenSession(slots[0], pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("keystore: pkcs11 open session: %w", err)
	}

	if pin != "" {
		if err := ctx.Login(session, pkcs11.CKU_USER, pin); err != nil {
			ctx.CloseSession(session)
			ctx.Destroy()
			return nil, fmt.Errorf("keystore: pkcs11 login: %w", err)
		}
	}

	return &PKCS11KeyStore{
		ctx:     ctx,
		session: session,
		private: make(map[string]pkcs11.ObjectHandle),
		public:  make(map[string]pkcs11.ObjectHandle),
	}, nil
}

// Close logs out, closes the session, and finalizes the module.
func (p *PKCS11KeyStore) Close() error {
	p.ctx.Logout(p.session)
	if err := p.ctx.CloseSession(p.session); err != nil {
		p.ctx.Destroy()
		return err
	}
	p.ctx.Destroy()
	return nil
}

// p256Params is the ANSI X9.62 OID for the P-256 curve, DER-encoded, the
// parameter GenerateKeyPair needs for a CKM_EC_KEY_PAIR_GEN mechanism.
var p256Params = []byte{0x06, 0x08, 0x2a, 0x86, 0x48, 0xce, 0x3d, 0x03, 0x01, 0x07}

func (p *PKCS11KeyStore) Generate(id string) ([]byte, error) {
	pubTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_EC_PARAMS, p256Params),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, id),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_VERIFY, true),
	}
	privTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, id),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_SIGN, true),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE, true),
	}

	pubHandle, privHandle, err := p.ctx.GenerateKeyPair(
		p.session,
		[]*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_EC_KEY_PAIR_GEN, nil)},
		pubTemplate,
		privTemplate,
	)
	if err != nil {
		return nil, fmt.Errorf("keystore: pkcs11 generate key pair for %q: %w", id, err)
	}

	p.mu.Lock()
	p.private[id] = privHandle
	p.public[id] = pubHandle
	p.mu.Unlock()

	return p.publicKeyBytes(pubHandle)
}

func (p *PKCS11KeyStore) Sign(id string, data []byte) ([]byte, error) {
	handle, err := p.findPrivate(id)
	if err != nil {
		return nil, err
	}
	if err := p.ctx.SignInit(p.session, []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_ECDSA_SHA256, nil)}, handle); err != nil {
		return nil, fmt.Errorf("keystore: pkcs11 sign init for %q: %w", id, err)
	}
	sig, err := p.ctx.Sign(p.session, data)
	if err != nil {
		return nil, fmt.Errorf("keystore: pkcs11 sign for %q: %w", id, err)
	}
	return sig, nil
}

func (p *PKCS11KeyStore) PublicKey(id string) ([]byte, error) {
	handle, err := p.findPublic(id)
	if err != nil {
		return nil, err
	}
	return p.publicKeyBytes(handle)
}

func (p *PKCS11KeyStore) Delete(id string) error {
	p.mu.Lock()
	priv, hasPriv := p.private[id]
	pub, hasPub := p.public[id]
	delete(p.private, id)
	delete(p.public, id)
	p.mu.Unlock()

	if !hasPriv && !hasPub {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, id)
	}
	if hasPriv {
		p.ctx.DestroyObject(p.session, priv)
	}
	if hasPub {
		p.ctx.DestroyObject(p.session, pub)
	}
	return nil
}

func (p *PKCS11KeyStore) publicKeyBytes(handle pkcs11.ObjectHandle) ([]byte, error) {
	attrs, err := p.ctx.GetAttributeValue(p.session, handle, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_EC_POINT, nil),
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: pkcs11 get ec point: %w", err)
	}
	if len(attrs) == 0 {
		return nil, fmt.Errorf("keystore: pkcs11 token returned no CKA_EC_POINT attribute")
	}
	return decodeECPoint(attrs[0].Value), nil
}

// decodeECPoint strips the DER OCTET STRING wrapper CKA_EC_POINT is stored
// in, returning the raw uncompressed EC point (0x04 || X || Y).
func decodeECPoint(der []byte) []byte {
	if len(der) >= 2 && der[0] == 0x04 {
		length := int(der[1])
		if length <= len(der)-2 {
			return der[2 : 2+length]
		}
	}
	return der
}

func (p *PKCS11KeyStore) findPrivate(id string) (pkcs11.ObjectHandle, error) {
	p.mu.Lock()
	handle, ok := p.private[id]
	p.mu.Unlock()
	if ok {
		return handle, nil
	}
	return p.findByLabel(id, pkcs11.CKO_PRIVATE_KEY)
}

func (p *PKCS11KeyStore) findPublic(id string) (pkcs11.ObjectHandle, error) {
	p.mu.Lock()
	handle, ok := p.public[id]
	p.mu.Unlock()
	if ok {
		return handle, nil
	}
	return p.findByLabel(id, pkcs11.CKO_PUBLIC_KEY)
}

// findByLabel searches the token for an object of the given class labeled
// with id, for keys generated in a prior process lifetime.
func (p *PKCS11KeyStore) findByLabel(id string, class uint) (pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, class),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, id),
	}
	if err := p.ctx.FindObjectsInit(p.session, template); err != nil {
		return 0, fmt.Errorf("keystore: pkcs11 find objects init: %w", err)
	}
	defer p.ctx.FindObjectsFinal(p.session)

	handles, _, err := p.ctx.FindObjects(p.session, 1)
	if err != nil {
		return 0, fmt.Errorf("keystore: pkcs11 find objects: %w", err)
	}
	if len(handles) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrKeyNotFound, id)
	}

	handle := handles[0]
	p.mu.Lock()
	if class == pkcs11.CKO_PRIVATE_KEY {
		p.private[id] = handle
	} else {
		p.public[id] = handle
	}
	p.mu.Unlock()
	return handle, nil
}

var _ IdentityKeyStore = (*PKCS11KeyStore)(nil)
