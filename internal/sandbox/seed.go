package sandbox

import (
	"context"
	"fmt"
)

// Pattern skeletons written into every fresh app so the agent can bootstrap
// a playable loop quickly instead of generating boilerplate from scratch.
var patternFiles = []struct {
	Path    string
	Content string
}{
	{
		Path: "/template/patterns/README.md",
		Content: "Phaser Pattern Library\n\n" +
			"This directory contains minimal Phaser scenes for fast bootstrapping:\n" +
			"- survivorsScene.js\n- runnerScene.js\n- bulletHellScene.js\n- reactionTimerScene.js\n- bossBattleScene.js\n\n" +
			"Each scene exports a function createSceneConfig(opts) that returns a Phaser.Game config you can pass to new Phaser.Game(config).",
	},
	{
		Path: "/template/patterns/survivorsScene.js",
		Content: `export function createSceneConfig(opts = {}) {
  return {
    type: Phaser.AUTO,
    backgroundColor: '#0b0b0b',
    scale: { mode: Phaser.Scale.RESIZE, width: window.innerWidth, height: window.innerHeight },
    physics: { default: 'arcade', arcade: { gravity: { y: 0 } } },
    scene: { preload, create, update }
  };
  function preload() {}
  function create() {
    this.player = this.add.circle(this.scale.width/2, this.scale.height/2, 8, 0x22c55e);
    this.enemies = this.add.group();
    this.cursors = this.input.keyboard.createCursorKeys();
    this.wasd = this.input.keyboard.addKeys('W,A,S,D');
    this.t = 0;
  }
  function update() {
    this.t++;
    if (this.t % 30 === 0) spawnEnemy.call(this);
    const speed = 180;
    const p = this.player;
    let vx = 0, vy = 0;
    if (this.cursors.left.isDown || this.wasd.A.isDown) vx -= 1;
    if (this.cursors.right.isDown || this.wasd.D.isDown) vx += 1;
    if (this.cursors.up.isDown || this.wasd.W.isDown) vy -= 1;
    if (this.cursors.down.isDown || this.wasd.S.isDown) vy += 1;
    p.x = Phaser.Math.Clamp(p.x + vx * (speed * this.game.loop.delta/1000), 0, this.scale.width);
    p.y = Phaser.Math.Clamp(p.y + vy * (speed * this.game.loop.delta/1000), 0, this.scale.height);
    this.enemies.children.iterate(e => { if (!e) return; const dx = p.x - e.x, dy = p.y - e.y; const d = Math.hypot(dx,dy) || 1; e.x += (dx/d) * 1.2; e.y += (dy/d) * 1.2; });
  }
  function spawnEnemy(){
    const edge = Math.random() < 0.5 ? 'x' : 'y';
    let x = Math.random()*this.scale.width;
    let y = Math.random()*this.scale.height;
    if (edge === 'x') x = Math.random()<0.5 ? -20 : this.scale.width+20; else y = Math.random()<0.5 ? -20 : this.scale.height+20;
    this.enemies.add(this.add.circle(x, y, 6, 0xef4444));
  }
}`,
	},
	{
		Path: "/template/patterns/runnerScene.js",
		Content: `export function createSceneConfig(opts = {}) {
  return {
    type: Phaser.AUTO,
    backgroundColor: '#0a0a0a',
    scale: { mode: Phaser.Scale.RESIZE, width: window.innerWidth, height: window.innerHeight },
    physics: { default: 'arcade', arcade: { gravity: { y: 900 } } },
    scene: { preload, create, update }
  };
  function preload(){}
  function create(){
    const groundY = this.scale.height - 20;
    this.ground = this.add.rectangle(this.scale.width/2, groundY, this.scale.width, 10, 0xffffff);
    this.player = this.add.rectangle(80, groundY-30, 16, 24, 0x60a5fa);
    this.physics.add.existing(this.player);
    this.player.body.setCollideWorldBounds(true);
    this.obstacles = this.add.group();
    this.t = 0;
    this.space = this.input.keyboard.addKey(Phaser.Input.Keyboard.KeyCodes.SPACE);
  }
  function update(){
    this.t++;
    if (this.t % 80 === 0) spawnObstacle.call(this);
    if (Phaser.Input.Keyboard.JustDown(this.space) && (this.player.body.onFloor || this.player.body.blocked.down)) {
      this.player.body.setVelocityY(-420);
    }
    this.obstacles.children.iterate(o => { if (!o) return; o.x -= 4; if (o.x < -20) o.destroy(); });
  }
  function spawnObstacle(){
    const groundY = this.scale.height - 20;
    const h = 16 + Math.random()*32;
    this.obstacles.add(this.add.rectangle(this.scale.width+20, groundY - h/2, 20, h, 0xef4444));
  }
}`,
	},
	{
		Path: "/template/patterns/bulletHellScene.js",
		Content: `export function createSceneConfig(opts = {}) {
  return {
    type: Phaser.AUTO,
    backgroundColor: '#0b0b0b',
    scale: { mode: Phaser.Scale.RESIZE, width: window.innerWidth, height: window.innerHeight },
    physics: { default: 'arcade', arcade: { gravity: { y: 0 } } },
    scene: { preload, create, update }
  };
  function preload(){}
  function create(){
    this.player = this.add.circle(this.scale.width/2, this.scale.height/2, 8, 0x22c55e);
    this.bullets = this.add.group();
    this.cursors = this.input.keyboard.createCursorKeys();
    this.wasd = this.input.keyboard.addKeys('W,A,S,D');
    this.t = 0;
  }
  function update(){
    this.t++; if (this.t % 12 === 0) spawnBullet.call(this);
    const speed = 180;
    const p = this.player;
    let vx = 0, vy = 0;
    if (this.cursors.left.isDown || this.wasd.A.isDown) vx -= 1;
    if (this.cursors.right.isDown || this.wasd.D.isDown) vx += 1;
    if (this.cursors.up.isDown || this.wasd.W.isDown) vy -= 1;
    if (this.cursors.down.isDown || this.wasd.S.isDown) vy += 1;
    p.x = Phaser.Math.Clamp(p.x + vx * (speed * this.game.loop.delta/1000), 0, this.scale.width);
    p.y = Phaser.Math.Clamp(p.y + vy * (speed * this.game.loop.delta/1000), 0, this.scale.height);
    this.bullets.children.iterate(b => { if (!b) return; b.x += b.vx; b.y += b.vy; });
  }
  function spawnBullet(){
    const a = Math.random()*Math.PI*2;
    const b = this.add.circle(Math.random()*this.scale.width, Math.random()*this.scale.height, 3, 0xf59e0b);
    b.vx = Math.cos(a)*2; b.vy = Math.sin(a)*2;
    this.bullets.add(b);
  }
}`,
	},
	{
		Path: "/template/patterns/reactionTimerScene.js",
		Content: `export function createSceneConfig(opts = {}) {
  return {
    type: Phaser.AUTO,
    backgroundColor: '#111111',
    scale: { mode: Phaser.Scale.RESIZE, width: window.innerWidth, height: window.innerHeight },
    scene: { preload, create, update }
  };
  function preload(){}
  function create(){
    this.state = 'wait'; this.t = 0; this.showAt = Math.floor(60 + Math.random()*180); this.reacted = false;
    this.add.text(20, 20, 'Wait for it...', { color: '#ffffff' });
    this.input.keyboard.on('keydown', () => { if (this.state === 'go') this.reacted = true; });
    this.input.on('pointerdown', () => { if (this.state === 'go') this.reacted = true; });
  }
  function update(){
    this.t++;
    if (this.state === 'wait' && this.t >= this.showAt){ this.state = 'go'; this.cameras.main.setBackgroundColor('#16a34a'); }
    if (this.state === 'go' && this.reacted){ this.state = 'wait'; this.t = 0; this.reacted = false; this.cameras.main.setBackgroundColor('#111111'); this.showAt = Math.floor(60 + Math.random()*180); }
  }
}`,
	},
	{
		Path: "/template/patterns/bossBattleScene.js",
		Content: `export function createSceneConfig(opts = {}) {
  return {
    type: Phaser.AUTO,
    backgroundColor: '#0b0b0b',
    scale: { mode: Phaser.Scale.RESIZE, width: window.innerWidth, height: window.innerHeight },
    physics: { default: 'arcade', arcade: { gravity: { y: 0 } } },
    scene: { preload, create, update }
  };
  function preload(){}
  function create(){
    this.player = this.add.circle(this.scale.width/2, this.scale.height-40, 8, 0x22c55e);
    this.boss = this.add.circle(this.scale.width/2, 60, 24, 0xef4444); this.boss.hp = 100;
    this.shots = this.add.group();
    this.cursors = this.input.keyboard.createCursorKeys();
    this.wasd = this.input.keyboard.addKeys('W,A,S,D,SPACE');
  }
  function update(){
    const speed = 200; const p = this.player; let vx = 0, vy = 0;
    if (this.cursors.left.isDown || this.wasd.A.isDown) vx -= 1;
    if (this.cursors.right.isDown || this.wasd.D.isDown) vx += 1;
    if (this.cursors.up.isDown || this.wasd.W.isDown) vy -= 1;
    if (this.cursors.down.isDown || this.wasd.S.isDown) vy += 1;
    p.x = Phaser.Math.Clamp(p.x + vx * (speed * this.game.loop.delta/1000), 0, this.scale.width);
    p.y = Phaser.Math.Clamp(p.y + vy * (speed * this.game.loop.delta/1000), 0, this.scale.height);
    if (Phaser.Input.Keyboard.JustDown(this.wasd.SPACE)){ this.shots.add(this.add.rectangle(p.x, p.y-12, 2, 6, 0xffffff)); }
    this.shots.children.iterate(s => { if (!s) return; s.y -= 6; if (s.y < -10) s.destroy(); if (Phaser.Math.Distance.Between(s.x, s.y, this.boss.x, this.boss.y) < 24){ this.boss.hp = Math.max(0, this.boss.hp-1); s.destroy(); } });
    this.boss.x = this.scale.width/2 + Math.sin(performance.now()/600)*120;
  }
}`,
	},
}

// SeedPatterns writes the Phaser pattern library and asset directories into a
// fresh dev server filesystem. Called once during app creation.
func SeedPatterns(ctx context.Context, fs *Filesystem) error {
	for _, dir := range []string{"/template/patterns", "/template/public/faces"} {
		if err := fs.Mkdir(ctx, dir); err != nil {
			return fmt.Errorf("seed mkdir %s: %w", dir, err)
		}
	}
	for _, file := range patternFiles {
		if err := fs.WriteFile(ctx, file.Path, file.Content); err != nil {
			return fmt.Errorf("seed %s: %w", file.Path, err)
		}
	}
	if err := fs.WriteFile(ctx, "/template/public/faces/.gitkeep", ""); err != nil {
		return fmt.Errorf("seed faces dir: %w", err)
	}
	return nil
}
