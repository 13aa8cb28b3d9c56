// Copyright 2025 The go-onyx Authors
// This file is part of the go-onyx library.

/*
Package aa implements the smart-wallet core of go-onyx's native Account
Abstraction: EIP-4337 style wallet validation and a deterministic wallet
factory.

# Architecture

The package is built around two contracts and one host-side collaborator:

 1. SmartWallet - the account itself. It answers a single question for the
    trusted EntryPoint: was this UserOperation authorized by the wallet's
    owner, and is the EntryPoint now whole on any funding shortfall? It also
    gates arbitrary outbound calls (Execute) behind the same trusted caller.

 2. WalletFactory - derives the address a wallet-with-given-parameters will
    occupy (GetAddress, pure, callable before any deployment) and deploys
    wallets idempotently at exactly that address (CreateAccount). Repeated
    calls with the same (owner, salt) return the same wallet and deploy code
    exactly once.

 3. EntryPoint - the trusted validation environment. It is the only caller
    allowed to invoke ValidateUserOp and Execute, and it owns the host-side
    half of the protocol: counterfactual deployment via initCode, nonce
    checking and advancement, prefund accounting, and receipt production.

A VerifyingPaymaster can be registered with the EntryPoint to sponsor
operations: when an operation names it, the paymaster validates the
sponsorship signature carried in PaymasterAndData and covers the prefund in
the wallet's stead.

# Validation flow

	EntryPoint.HandleOp(op)
	    1. Deploy sender via initCode if no code at op.Sender
	    2. Check op.Nonce against the sender's account nonce
	    3. SmartWallet.ValidateUserOp:
	       a. trusted-caller gate
	       b. EIP-191 framing of the operation digest
	       c. 65-byte (r, s, v) signature decode, bounds-checked
	       d. secp256k1 recovery, compared against the wallet owner
	       e. funding settlement of missingAccountFunds to the EntryPoint
	    4. SmartWallet.Execute of the operation callData
	    5. Nonce advancement and receipt

# Addressing

Wallet addresses are content addresses: keccak256 of a fixed tag byte, the
factory address, the caller-chosen salt, and the hash of the wallet
instantiation code (creation-code prefix plus the padded constructor
parameters). Derivation is pure and stable: the same (owner, salt) yields the
same address before and after deployment, for the lifetime of the factory.
*/
package aa
