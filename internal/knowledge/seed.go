package knowledge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/pkg/logger"
)

// DefaultDocuments is the cybersecurity ground truth used by the rag strategy.
var DefaultDocuments = []Document{
	{
		Text: "SQL Injection is a code injection technique that exploits vulnerabilities in an application's database layer. " +
			"Attackers insert malicious SQL code into input fields, which is then executed by the database. " +
			"Prevention methods include using parameterized queries, input validation, and stored procedures. " +
			"SQL injection is part of the OWASP Top 10 most critical web application security risks.",
		Metadata: map[string]string{"topic": "sql_injection", "category": "web_security"},
	},
	{
		Text: "The CIA Triad is a fundamental model in information security consisting of three principles: " +
			"Confidentiality (protecting information from unauthorized access), Integrity (ensuring information accuracy and completeness), " +
			"and Availability (ensuring authorized users have access when needed). This model guides security policies and implementations.",
		Metadata: map[string]string{"topic": "cia_triad", "category": "fundamentals"},
	},
	{
		Text: "CVE-2021-44228, known as Log4Shell, is a critical remote code execution vulnerability in Apache Log4j 2. " +
			"It has a CVSS score of 10.0 (Critical). The vulnerability allows attackers to execute arbitrary code by exploiting the JNDI lookup feature. " +
			"It was discovered in December 2021 and affected millions of systems worldwide.",
		Metadata: map[string]string{"topic": "log4shell", "category": "vulnerabilities", "cve": "CVE-2021-44228"},
	},
	{
		Text: "AES (Advanced Encryption Standard) is a symmetric encryption algorithm adopted by NIST in 2001. " +
			"AES-256 uses a 256-bit key and is considered secure against brute-force attacks. " +
			"ChaCha20 is a stream cipher alternative to AES, offering similar security with better performance on devices without AES hardware acceleration.",
		Metadata: map[string]string{"topic": "encryption", "category": "cryptography"},
	},
	{
		Text: "Cross-Site Scripting (XSS) allows attackers to inject malicious scripts into web pages viewed by other users. " +
			"There are three types: Reflected XSS (non-persistent), Stored XSS (persistent), and DOM-based XSS. " +
			"Prevention includes input validation, output encoding, and Content Security Policy (CSP) headers.",
		Metadata: map[string]string{"topic": "xss", "category": "web_security"},
	},
	{
		Text: "Metasploit is a penetration testing framework developed by Rapid7. " +
			"First released in 2003 by H.D. Moore, it provides tools for discovering vulnerabilities, developing exploits, and conducting security assessments. " +
			"It includes hundreds of exploit modules and auxiliary tools.",
		Metadata: map[string]string{"topic": "metasploit", "category": "tools"},
	},
	{
		Text: "The OWASP Top 10 is a standard awareness document for web application security. " +
			"The 2021 edition includes: 1) Broken Access Control, 2) Cryptographic Failures, 3) Injection, 4) Insecure Design, " +
			"5) Security Misconfiguration, 6) Vulnerable and Outdated Components, 7) Identification and Authentication Failures, " +
			"8) Software and Data Integrity Failures, 9) Security Logging and Monitoring Failures, 10) Server-Side Request Forgery (SSRF).",
		Metadata: map[string]string{"topic": "owasp_top_10", "category": "standards"},
	},
	{
		Text: "A firewall is a network security device that monitors and controls incoming and outgoing network traffic based on predetermined security rules. " +
			"Firewalls can be hardware-based, software-based, or both. " +
			"They establish a barrier between trusted internal networks and untrusted external networks.",
		Metadata: map[string]string{"topic": "firewall", "category": "network_security"},
	},
	{
		Text: "Public Key Infrastructure (PKI) uses asymmetric cryptography with public and private key pairs. " +
			"The public key encrypts data, while only the corresponding private key can decrypt it. " +
			"Common algorithms include RSA, ECC (Elliptic Curve Cryptography), and DSA. " +
			"PKI is fundamental to SSL/TLS certificates and digital signatures.",
		Metadata: map[string]string{"topic": "pki", "category": "cryptography"},
	},
	{
		Text: "Snort and Suricata are both open-source intrusion detection systems (IDS). " +
			"Snort, created in 1998, uses signature-based detection. Suricata, released in 2009, offers multi-threading and hardware acceleration. " +
			"Both can operate in IDS and IPS (intrusion prevention) modes and use similar rule syntaxes.",
		Metadata: map[string]string{"topic": "ids", "category": "tools"},
	},
	{
		Text: "HTTPS (Hypertext Transfer Protocol Secure) is HTTP with encryption using TLS/SSL. " +
			"It ensures confidentiality, integrity, and authentication of web communications. " +
			"HTTPS uses port 443 by default, compared to HTTP's port 80. Modern browsers mark HTTP sites as \"Not Secure\".",
		Metadata: map[string]string{"topic": "https", "category": "network_security"},
	},
	{
		Text: "Zero-day vulnerabilities are security flaws unknown to the software vendor. " +
			"Attackers exploit these vulnerabilities before patches are available. " +
			"The term \"zero-day\" refers to zero days between discovery and exploit. " +
			"These are highly valuable in both legitimate security research and criminal markets.",
		Metadata: map[string]string{"topic": "zero_day", "category": "vulnerabilities"},
	},
	{
		Text: "Multi-Factor Authentication (MFA) requires two or more verification factors: something you know (password), " +
			"something you have (token/phone), and something you are (biometrics). " +
			"MFA significantly reduces the risk of unauthorized access even if passwords are compromised.",
		Metadata: map[string]string{"topic": "mfa", "category": "authentication"},
	},
	{
		Text: "A timing attack is a side-channel attack that exploits variations in execution time. " +
			"Against RSA, attackers can analyze decryption times to deduce private key information. " +
			"Countermeasures include constant-time implementations and blinding techniques.",
		Metadata: map[string]string{"topic": "timing_attack", "category": "cryptographic_attacks"},
	},
	{
		Text: "A padding oracle attack exploits the error messages from padding validation in block cipher modes like CBC. " +
			"The POODLE attack (2014) used this technique against SSL 3.0. " +
			"Prevention includes using authenticated encryption modes like GCM or removing padding error messages.",
		Metadata: map[string]string{"topic": "padding_oracle", "category": "cryptographic_attacks"},
	},
}

// SeedDefaults loads DefaultDocuments into an empty collection. A collection
// that already holds documents is left untouched. It returns the number of
// documents added.
func (o *Oracle) SeedDefaults(ctx context.Context) (int, error) {
	count, err := o.Count(ctx)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		logger.Info("Knowledge base already populated",
			zap.String("collection", o.index.Collection().Name),
			zap.Int("documents", count),
		)
		return 0, nil
	}

	n, err := o.AddDocuments(ctx, DefaultDocuments)
	if err != nil {
		return 0, fmt.Errorf("failed to seed knowledge base: %w", err)
	}

	logger.Info("Initialized knowledge base", zap.Int("documents", n))
	return n, nil
}
